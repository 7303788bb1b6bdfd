package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	cookieBucket     = "cookies"
	expiryValueBytes = 8
)

// storedCookie is the persisted subset of http.Cookie.
type storedCookie struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Path     string        `json:"path,omitempty"`
	Domain   string        `json:"domain,omitempty"`
	Expires  time.Time     `json:"expires,omitempty"`
	Secure   bool          `json:"secure,omitempty"`
	HttpOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

func (c storedCookie) key() string {
	return c.Name + "|" + c.Domain + "|" + c.Path
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c storedCookie) httpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
}

func fromHTTPCookie(c *http.Cookie, now time.Time) storedCookie {
	sc := storedCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
	if sc.Path == "" {
		sc.Path = "/"
	}
	switch {
	case c.MaxAge < 0:
		sc.Expires = now.Add(-time.Second)
	case c.MaxAge > 0:
		sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return sc
}

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cookieBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// LoadCookies returns the unexpired cookies recorded for host.
func (b *boltStore) LoadCookies(host string) ([]*http.Cookie, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	var out []*http.Cookie
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}

		key := hostKey(host)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}
		cookies, ok := decodeRecord(value, now)
		if !ok {
			return bucket.Delete(key)
		}
		for _, c := range cookies {
			if !c.expired(now) {
				out = append(out, c.httpCookie())
			}
		}
		return nil
	})
	return out, err
}

// SaveCookies merges cookies into the record for host and refreshes its expiry.
// Cookies that are already expired (or carry a negative Max-Age) are removed.
func (b *boltStore) SaveCookies(host string, cookies []*http.Cookie) error {
	if b == nil || b.db == nil || len(cookies) == 0 {
		return nil
	}
	if len(hostKey(host)) == 0 {
		return fmt.Errorf("cookie host is empty")
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}

		key := hostKey(host)
		prev := bucket.Get(key)
		existing, _ := decodeRecord(prev, now)

		merged := make(map[string]storedCookie, len(existing)+len(cookies))
		order := make([]string, 0, len(existing)+len(cookies))
		add := func(c storedCookie) {
			k := c.key()
			if _, seen := merged[k]; !seen {
				order = append(order, k)
			}
			merged[k] = c
		}
		for _, c := range existing {
			add(c)
		}
		for _, c := range cookies {
			if c == nil || c.Name == "" {
				continue
			}
			add(fromHTTPCookie(c, now))
		}

		kept := make([]storedCookie, 0, len(order))
		for _, k := range order {
			if c := merged[k]; !c.expired(now) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			if prev == nil {
				return nil
			}
			return bucket.Delete(key)
		}

		value, err := encodeRecord(kept, now.Add(b.recordTTL))
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// maybeCleanupExpired removes expired host records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if _, ok := decodeRecord(v, now); !ok {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func hostKey(host string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(host)))
}

// encodeRecord lays out a record as an 8-byte big-endian expiry followed by the JSON cookie list.
func encodeRecord(cookies []storedCookie, expiry time.Time) ([]byte, error) {
	payload, err := json.Marshal(cookies)
	if err != nil {
		return nil, fmt.Errorf("encode cookies: %w", err)
	}
	buf := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	return append(buf, payload...), nil
}

// decodeRecord returns the cookies of a live record; ok is false for missing,
// malformed or expired records.
func decodeRecord(value []byte, now time.Time) ([]storedCookie, bool) {
	expiry, ok := decodeExpiry(value)
	if !ok || !expiry.After(now) {
		return nil, false
	}
	var cookies []storedCookie
	if err := json.Unmarshal(value[expiryValueBytes:], &cookies); err != nil {
		return nil, false
	}
	return cookies, true
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
