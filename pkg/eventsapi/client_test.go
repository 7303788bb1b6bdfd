package eventsapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/events-client/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingServer serves a fixed status and body and counts hits.
type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCountingServer(t *testing.T, status int, body string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func newTestClient(t *testing.T, baseURL string, fallback Fallback, timeout time.Duration) *Client {
	t.Helper()
	transport := httpclient.NewRestyClient(httpclient.Options{})
	t.Cleanup(transport.CloseIdleConnections)
	c, err := New(Config{BaseURL: baseURL, Timeout: timeout, Fallback: fallback}, transport, nil)
	require.NoError(t, err)
	return c
}

func urlFallbackFor(t *testing.T, srv *countingServer) Fallback {
	t.Helper()
	transport := httpclient.NewRestyClient(httpclient.Options{})
	t.Cleanup(transport.CloseIdleConnections)
	return URLFallback(transport, srv.URL+"/events-dummy.json", time.Second)
}

func TestGetReturnsLiveBodyWithoutTouchingFallback(t *testing.T) {
	api := newCountingServer(t, http.StatusOK, `{"events":[{"id":1}]}`)
	fb := newCountingServer(t, http.StatusOK, `{"events":[]}`)

	c := newTestClient(t, api.URL, urlFallbackFor(t, fb), time.Second)
	got, err := c.Get(context.Background(), "/events")

	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[{"id":1}]}`, string(got))
	assert.EqualValues(t, 1, api.hits.Load())
	assert.EqualValues(t, 0, fb.hits.Load())
}

func TestGetFallsBackWhenAPIUnreachable(t *testing.T) {
	fb := newCountingServer(t, http.StatusOK, `{"events":[]}`)

	c := newTestClient(t, unreachableURL(t), urlFallbackFor(t, fb), time.Second)
	got, err := c.Get(context.Background(), "/events")

	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(got))
	assert.EqualValues(t, 1, fb.hits.Load())
}

func TestGetFallsBackOnNonSuccessStatus(t *testing.T) {
	api := newCountingServer(t, http.StatusServiceUnavailable, `{"error":"down"}`)

	c := newTestClient(t, api.URL, StaticFallback([]byte(`{"events":[]}`)), time.Second)
	got, err := c.Get(context.Background(), "/events")

	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(got))
}

func TestGetFallsBackOnInvalidJSON(t *testing.T) {
	api := newCountingServer(t, http.StatusOK, `not json`)

	c := newTestClient(t, api.URL, StaticFallback([]byte(`{"events":[]}`)), time.Second)
	got, err := c.Get(context.Background(), "/events")

	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(got))
}

func TestGetFallsBackOnTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"events":[{"id":99}]}`)
	}))
	defer slow.Close()

	c := newTestClient(t, slow.URL, StaticFallback([]byte(`{"events":[]}`)), 50*time.Millisecond)

	start := time.Now()
	got, err := c.Get(context.Background(), "/events")

	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(got))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetSurfacesPrimaryErrorWhenFallbackFails(t *testing.T) {
	api := newCountingServer(t, http.StatusServiceUnavailable, `down`)
	fb := newCountingServer(t, http.StatusNotFound, `missing`)

	c := newTestClient(t, api.URL, urlFallbackFor(t, fb), time.Second)
	_, err := c.Get(context.Background(), "/events")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.MethodGet, statusErr.Method)
	assert.Equal(t, "/events", statusErr.Path)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, "GET /events -> 503", err.Error())
	assert.EqualValues(t, 1, fb.hits.Load())
}

func TestGetSurfacesTimeoutWhenFallbackUnreachable(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	transport := httpclient.NewRestyClient(httpclient.Options{})
	t.Cleanup(transport.CloseIdleConnections)
	fallback := URLFallback(transport, unreachableURL(t)+"/events-dummy.json", time.Second)

	c := newTestClient(t, slow.URL, fallback, 50*time.Millisecond)
	_, err := c.Get(context.Background(), "/events")

	require.Error(t, err)
	assert.True(t, errors.Is(err, httpclient.ErrTimeout), "expected primary timeout, got %v", err)
}

func TestGetWithoutFallbackReturnsPrimaryError(t *testing.T) {
	api := newCountingServer(t, http.StatusBadGateway, ``)

	c := newTestClient(t, api.URL, nil, time.Second)
	_, err := c.Get(context.Background(), "/events")

	assert.EqualError(t, err, "GET /events -> 502")
	assert.False(t, errors.Is(err, ErrNoFallback))
}

func TestGetFallbackWithInvalidJSONKeepsPrimaryError(t *testing.T) {
	api := newCountingServer(t, http.StatusInternalServerError, ``)

	c := newTestClient(t, api.URL, StaticFallback([]byte(`{broken`)), time.Second)
	_, err := c.Get(context.Background(), "/events")

	assert.EqualError(t, err, "GET /events -> 500")
}

func TestJSONNonSuccessCarriesMethodPathStatus(t *testing.T) {
	api := newCountingServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	fb := newCountingServer(t, http.StatusOK, `{"events":[]}`)

	c := newTestClient(t, api.URL, urlFallbackFor(t, fb), time.Second)
	_, err := c.JSON(context.Background(), http.MethodPost, "/events", map[string]string{"title": "x"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "POST /events -> 500", err.Error())
	assert.Equal(t, http.MethodPost, statusErr.Method)
	assert.Equal(t, "/events", statusErr.Path)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.EqualValues(t, 0, fb.hits.Load(), "writes must never consult the fallback")
}

func TestJSONSendsHeadersAndDefaultBody(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        []byte
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, nil, time.Second)
	got, err := c.JSON(context.Background(), "put", "/events/7", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{}`, string(gotBody))
}

func TestJSONTypedNilBodySendsEmptyObject(t *testing.T) {
	var bodies []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, nil, time.Second)
	ctx := context.Background()

	for _, body := range []any{
		map[string]any(nil),
		(*EventInput)(nil),
		[]string(nil),
		json.RawMessage(`null`),
	} {
		_, err := c.JSON(ctx, http.MethodPost, "/events", body)
		require.NoError(t, err)
	}

	require.Len(t, bodies, 4)
	for _, got := range bodies {
		assert.Equal(t, `{}`, got)
	}
}

// debugRecorder keeps every trace line the client emits.
type debugRecorder struct {
	messages []string
}

func (d *debugRecorder) DebugObj(msg, _ string, _ interface{}) {
	d.messages = append(d.messages, msg)
}

func TestGetOnlyTracesFallbackAtDebug(t *testing.T) {
	api := newCountingServer(t, http.StatusServiceUnavailable, `{}`)
	rec := &debugRecorder{}

	transport := httpclient.NewRestyClient(httpclient.Options{})
	t.Cleanup(transport.CloseIdleConnections)
	c, err := New(Config{BaseURL: api.URL, Timeout: time.Second, Fallback: StaticFallback([]byte(`{"events":[]}`))}, transport, rec)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/events")
	require.NoError(t, err)
	assert.Equal(t, []string{"primary read failed; trying fallback", "served read from fallback"}, rec.messages)
}

func TestJSONEmptySuccessBodyReturnsNil(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, nil, time.Second)
	got, err := c.JSON(context.Background(), http.MethodDelete, "/events/7", nil)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONRejectsUnserializableBodyWithoutSending(t *testing.T) {
	api := newCountingServer(t, http.StatusOK, `{}`)

	c := newTestClient(t, api.URL, nil, time.Second)
	_, err := c.JSON(context.Background(), http.MethodPost, "/events", map[string]any{"bad": make(chan int)})

	require.ErrorIs(t, err, ErrEncodeBody)
	assert.EqualValues(t, 0, api.hits.Load())
}

func TestJSONTimeoutPropagates(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	c := newTestClient(t, slow.URL, StaticFallback([]byte(`{}`)), 50*time.Millisecond)
	_, err := c.JSON(context.Background(), http.MethodPost, "/events", json.RawMessage(`{"title":"x"}`))

	require.ErrorIs(t, err, httpclient.ErrTimeout)
}

func TestNewValidatesConfig(t *testing.T) {
	transport := httpclient.NewRestyClient(httpclient.Options{})

	_, err := New(Config{BaseURL: ""}, transport, nil)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://example.com"}, transport, nil)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost:3036"}, nil, nil)
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:3036/", Timeout: -1}, transport, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3036", c.BaseURL())
	assert.Equal(t, httpclient.DefaultTimeout, c.Timeout())
}

func TestResolveJoinsPaths(t *testing.T) {
	c := &Client{baseURL: "http://api.test"}
	assert.Equal(t, "http://api.test/events", c.resolve("/events"))
	assert.Equal(t, "http://api.test/events", c.resolve("events"))
}
