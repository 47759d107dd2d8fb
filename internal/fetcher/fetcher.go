// Package fetcher provides the rate-limited HTTP capability used by source
// fetchers, link validation and taxonomy ingestion.
package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the HTTP operations consumed by the pipeline.
type Fetcher interface {
	// Download fetches the URL and returns the response body. Non-200 responses are errors.
	Download(ctx context.Context, url string, opts ...RequestOption) (io.ReadCloser, error)

	// GetJSON fetches the URL and decodes a 200 response body into out.
	GetJSON(ctx context.Context, url string, out any, opts ...RequestOption) error

	// Probe issues a single request and reports the status and content type
	// without reading the body. Network failures are returned as errors.
	Probe(ctx context.Context, method, url string, opts ...RequestOption) (*ProbeResult, error)
}

// ProbeResult is the outcome of a Probe call.
type ProbeResult struct {
	StatusCode  int
	ContentType string
}

// RequestOption customizes an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQuery adds query parameters to the request URL.
func WithQuery(params map[string]string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}
