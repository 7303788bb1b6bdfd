package storage

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/samvad-hq/events-client/internal/logger"
	"golang.org/x/net/publicsuffix"
)

// CookieJar is an http.CookieJar whose cookies survive restarts through a Store.
// Each host is loaded from the store the first time it is seen.
type CookieJar struct {
	inner  *cookiejar.Jar
	store  Store
	mu     sync.Mutex
	loaded map[string]bool
}

var _ http.CookieJar = (*CookieJar)(nil)

// NewCookieJar builds a jar backed by store. A nil store keeps cookies in memory only.
func NewCookieJar(store Store) (*CookieJar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if store == nil {
		store = noopStore{}
	}
	return &CookieJar{
		inner:  inner,
		store:  store,
		loaded: make(map[string]bool),
	}, nil
}

// SetCookies records cookies received from u and persists them.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.ensureLoaded(u)
	j.inner.SetCookies(u, cookies)

	if err := j.store.SaveCookies(u.Hostname(), cookies); err != nil {
		logger.WarnObj("cookie persist failed", "cookie_store_error", map[string]any{
			"host":  u.Hostname(),
			"error": err.Error(),
		})
	}
}

// Cookies returns the cookies to send in a request for u.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.ensureLoaded(u)
	return j.inner.Cookies(u)
}

func (j *CookieJar) ensureLoaded(u *url.URL) {
	host := u.Hostname()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.loaded[host] {
		return
	}
	j.loaded[host] = true

	cookies, err := j.store.LoadCookies(host)
	if err != nil {
		logger.WarnObj("cookie load failed", "cookie_store_error", map[string]any{
			"host":  host,
			"error": err.Error(),
		})
		return
	}
	if len(cookies) == 0 {
		return
	}
	j.inner.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, cookies)
}
