package eventsapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samvad-hq/events-client/pkg/httpclient"
)

// Fallback loads the static resource served when a primary read fails.
// Implementations are read-only.
type Fallback interface {
	Load(ctx context.Context) ([]byte, error)
}

//go:embed events-dummy.json
var bundledEvents []byte

// BundledFallback serves the dummy dataset compiled into the binary.
func BundledFallback() Fallback {
	return staticFallback(bundledEvents)
}

// StaticFallback serves a fixed document.
func StaticFallback(body []byte) Fallback {
	return staticFallback(append([]byte(nil), body...))
}

type staticFallback []byte

func (s staticFallback) Load(context.Context) ([]byte, error) {
	return append([]byte(nil), s...), nil
}

// fileFallback reads a local JSON file on every call; nothing is cached.
type fileFallback struct {
	path string
}

// FileFallback serves the contents of a local file.
func FileFallback(path string) Fallback {
	return &fileFallback{path: strings.TrimSpace(path)}
}

func (f *fileFallback) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.path == "" {
		return nil, fmt.Errorf("fallback file path is empty")
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	return raw, nil
}

// urlFallback fetches a static document served independently of the API.
type urlFallback struct {
	client  httpclient.Client
	url     string
	timeout time.Duration
}

// URLFallback serves the document at url, fetched through client and bounded by timeout.
func URLFallback(client httpclient.Client, url string, timeout time.Duration) Fallback {
	return &urlFallback{client: client, url: strings.TrimSpace(url), timeout: timeout}
}

func (u *urlFallback) Load(ctx context.Context) ([]byte, error) {
	if u.url == "" {
		return nil, fmt.Errorf("fallback url is empty")
	}
	resp, err := httpclient.DoWithTimeout(ctx, u.client, httpclient.Request{
		Method:  http.MethodGet,
		URL:     u.url,
		Headers: map[string]string{"Accept": "application/json"},
	}, u.timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch fallback: %w", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, &StatusError{
			Method: http.MethodGet,
			Path:   u.url,
			Status: resp.StatusCode(),
			Detail: describeBody(resp.Header().Get("Content-Type"), resp.Body()),
		}
	}
	return resp.Body(), nil
}

type noFallback struct{}

func (noFallback) Load(context.Context) ([]byte, error) { return nil, ErrNoFallback }
