// Package httpjson holds the request plumbing shared by the upstream API
// clients: status-aware errors and bounded body reads.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout applies when a client is built without an explicit
// *http.Client.
const DefaultTimeout = 10 * time.Second

const (
	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// StatusError captures non-2xx upstream responses.
type StatusError struct {
	Service    string
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d from %s: %s", e.Service, e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode exposes the upstream status for error mapping.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client returns hc, or a client with DefaultTimeout when hc is nil.
func Client(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// NewRequest builds a request, JSON-encoding body when it is non-nil.
func NewRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req and returns the response body. Non-2xx responses become a
// *StatusError tagged with service.
func Do(hc *http.Client, service string, req *http.Request) ([]byte, error) {
	res, err := Client(hc).Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{
			Service:    service,
			StatusCode: res.StatusCode,
			URL:        stripQuery(req),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// DoInto is Do followed by decoding the body into out.
func DoInto(hc *http.Client, service string, req *http.Request, out any) error {
	raw, err := Do(hc, service, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// stripQuery keeps credentials passed as query parameters out of errors.
func stripQuery(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.Redacted()
}
