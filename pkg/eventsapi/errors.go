package eventsapi

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Sentinel error kinds. These allow errors.Is from callers.
var (
	ErrInvalidJSON = errors.New("response body is not valid JSON")
	ErrEncodeBody  = errors.New("encode request body")
	ErrNoFallback  = errors.New("no fallback resource configured")
)

// StatusError reports a response whose status is outside the 2xx range.
type StatusError struct {
	Method string
	Path   string
	Status int
	// Detail is a short human readable excerpt of the response body.
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s -> %d", e.Method, e.Path, e.Status)
}

// DecodeError wraps ErrInvalidJSON with the request that produced the body.
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const maxDetailLen = 512

// describeBody extracts the page title from HTML error pages (proxies, dev servers)
// and falls back to a trimmed snippet for anything else.
func describeBody(contentType string, body []byte) string {
	if isHTML(contentType, body) {
		if title := htmlTitle(body); title != "" {
			return title
		}
	}
	return bodySnippet(body)
}

func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/html" {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxDetailLen {
		cut := maxDetailLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
