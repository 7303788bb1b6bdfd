// Package eventsapi reads from and writes to the events API through a timeout-bounded
// HTTP helper. Reads fall back to a static resource when the API is unavailable;
// writes never do.
package eventsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/events-client/pkg/httpclient"
)

// Config holds the values injected into a Client at construction.
type Config struct {
	// BaseURL is the endpoint every path is appended to, e.g. http://localhost:3036.
	BaseURL string
	// Timeout bounds each request. Non-positive values use httpclient.DefaultTimeout.
	Timeout time.Duration
	// Fallback is consulted once when a read fails. Nil disables the fallback.
	Fallback Fallback
	// Headers are sent with every request.
	Headers map[string]string
}

// Client issues reads and writes against the configured base endpoint.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     httpclient.Client
	fallback Fallback
	headers  map[string]string
	log      Logger
}

// New validates cfg and builds a Client on top of the given transport.
func New(cfg Config, client httpclient.Client, log Logger) (*Client, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = noFallback{}
	}

	return &Client{
		baseURL:  base,
		timeout:  timeout,
		http:     client,
		fallback: fallback,
		headers:  copyHeaders(cfg.Headers),
		log:      ensureLogger(log),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = v
		}
	}
	return out
}

// BaseURL returns the normalized base endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-request bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// attempt is the outcome of one request: a validated JSON body or the failure cause.
type attempt struct {
	body json.RawMessage
	err  error
}

func succeeded(body json.RawMessage) attempt { return attempt{body: body} }
func failed(err error) attempt               { return attempt{err: err} }

func (a attempt) ok() bool { return a.err == nil }

// Get reads path from the API. On any failure it makes exactly one attempt to load the
// fallback resource; if that also fails, the primary error is returned and the
// fallback's own error is discarded. Fallback data is returned as if it were live.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	primary := c.readPrimary(ctx, path)
	if primary.ok() {
		return primary.body, nil
	}

	c.log.DebugObj("primary read failed; trying fallback", "read_failure", map[string]any{
		"path":  path,
		"error": primary.err.Error(),
	})

	fallback := c.readFallback(ctx)
	if fallback.ok() {
		c.log.DebugObj("served read from fallback", "read_fallback", map[string]any{
			"path":  path,
			"bytes": len(fallback.body),
		})
		return fallback.body, nil
	}

	c.log.DebugObj("fallback read failed; returning primary error", "fallback_failure", map[string]any{
		"path":  path,
		"error": fallback.err.Error(),
	})
	return nil, primary.err
}

func (c *Client) readPrimary(ctx context.Context, path string) attempt {
	resp, err := httpclient.DoWithTimeout(ctx, c.http, httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.resolve(path),
		Headers: c.requestHeaders(nil),
	}, c.timeout)
	if err != nil {
		return failed(err)
	}
	if !isSuccess(resp.StatusCode()) {
		return failed(statusError(http.MethodGet, path, resp))
	}
	return decodeBody(http.MethodGet, path, resp.Body())
}

func (c *Client) readFallback(ctx context.Context) attempt {
	raw, err := c.fallback.Load(ctx)
	if err != nil {
		return failed(err)
	}
	return decodeBody(http.MethodGet, "fallback", raw)
}

// JSON sends body, serialized as JSON, to path with the given method. A nil body is sent
// as an empty object. Failures are always returned to the caller; there is no fallback
// for writes. An empty success body yields a nil result.
func (c *Client) JSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, errors.New("method is required")
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	resp, err := httpclient.DoWithTimeout(ctx, c.http, httpclient.Request{
		Method:  method,
		URL:     c.resolve(path),
		Headers: c.requestHeaders(map[string]string{"Content-Type": "application/json"}),
		Body:    payload,
	}, c.timeout)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, statusError(method, path, resp)
	}

	raw := resp.Body()
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	res := decodeBody(method, path, raw)
	return res.body, res.err
}

// encodeBody serializes body. Omitted bodies, including typed nils that encode as
// null, are sent as an empty object.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return emptyObject(), nil
	}
	var payload []byte
	if raw, ok := body.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: raw message is not valid JSON", ErrEncodeBody)
		}
		payload = raw
	} else {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeBody, err)
		}
	}
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return emptyObject(), nil
	}
	return payload, nil
}

func emptyObject() []byte { return []byte("{}") }

func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) requestHeaders(extra map[string]string) map[string]string {
	headers := make(map[string]string, len(c.headers)+len(extra)+1)
	headers["Accept"] = "application/json"
	for k, v := range c.headers {
		headers[k] = v
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

func decodeBody(method, path string, body []byte) attempt {
	if !json.Valid(body) {
		return failed(&DecodeError{Method: method, Path: path, Err: ErrInvalidJSON})
	}
	return succeeded(json.RawMessage(body))
}

func statusError(method, path string, resp httpclient.Response) error {
	return &StatusError{
		Method: method,
		Path:   path,
		Status: resp.StatusCode(),
		Detail: describeBody(resp.Header().Get("Content-Type"), resp.Body()),
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Decode unmarshals a response body into a value of type T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("decode: %w", ErrInvalidJSON)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
