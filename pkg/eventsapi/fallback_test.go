package eventsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samvad-hq/events-client/pkg/httpclient"
)

func TestBundledFallbackIsValidEventList(t *testing.T) {
	raw, err := BundledFallback().Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	list, err := Decode[eventList](raw)
	if err != nil {
		t.Fatalf("bundled dataset does not decode: %v", err)
	}
	if len(list.Events) == 0 {
		t.Fatalf("expected bundled dataset to contain events")
	}
}

func TestStaticFallbackReturnsCopies(t *testing.T) {
	fb := StaticFallback([]byte(`{"events":[]}`))
	first, _ := fb.Load(context.Background())
	first[0] = 'X'

	second, _ := fb.Load(context.Background())
	if !json.Valid(second) {
		t.Fatalf("fallback content was mutated through a returned slice: %q", second)
	}
}

func TestFileFallbackReadsOnEveryCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events-dummy.json")
	if err := os.WriteFile(path, []byte(`{"events":[]}`), 0o644); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	fb := FileFallback(path)
	if _, err := fb.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"events":[{"id":3}]}`), 0o644); err != nil {
		t.Fatalf("rewrite fallback: %v", err)
	}
	raw, err := fb.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after rewrite: %v", err)
	}
	if string(raw) != `{"events":[{"id":3}]}` {
		t.Fatalf("fallback result was cached: %s", raw)
	}
}

func TestFileFallbackMissingFile(t *testing.T) {
	fb := FileFallback(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := fb.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing fallback file")
	}
	if _, err := FileFallback("  ").Load(context.Background()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

type stubResponse struct {
	status int
	body   string
}

func (s stubResponse) Body() []byte        { return []byte(s.body) }
func (s stubResponse) StatusCode() int     { return s.status }
func (s stubResponse) Header() http.Header { return http.Header{} }

type stubTransport struct {
	resp httpclient.Response
	urls []string
}

func (s *stubTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	s.urls = append(s.urls, req.URL)
	return s.resp, nil
}

func TestURLFallbackRejectsNonSuccess(t *testing.T) {
	transport := &stubTransport{resp: stubResponse{status: http.StatusNotFound, body: "not found"}}
	fb := URLFallback(transport, "http://app.test/events-dummy.json", time.Second)

	_, err := fb.Load(context.Background())
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T (%v)", err, err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Fatalf("unexpected status %d", statusErr.Status)
	}
	if len(transport.urls) != 1 || transport.urls[0] != "http://app.test/events-dummy.json" {
		t.Fatalf("unexpected requests %v", transport.urls)
	}
}

func TestNoFallbackAlwaysFails(t *testing.T) {
	if _, err := (noFallback{}).Load(context.Background()); err != ErrNoFallback {
		t.Fatalf("expected ErrNoFallback, got %v", err)
	}
}
