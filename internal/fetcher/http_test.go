package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/mne-enrich/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		Retry:     resilience.FromRetryConfig(3, 1),
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/rdf+xml", r.Header.Get("Accept"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL+"/data", WithHeader("Accept", "application/rdf+xml"))
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestDownloadNotFound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGetJSONWithQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AIRBUS", r.URL.Query().Get("q"))
		assert.Equal(t, "GE", r.URL.Query().Get("categorie_entreprise"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"siren":"383474814"}]}`))
	}))
	defer srv.Close()

	var out struct {
		Results []struct {
			Siren string `json:"siren"`
		} `json:"results"`
	}
	f := newTestFetcher()
	err := f.GetJSON(context.Background(), srv.URL+"/search", &out,
		WithQuery(map[string]string{"q": "AIRBUS", "categorie_entreprise": "GE"}))
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "383474814", out.Results[0].Siren)
}

func TestGetJSONMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":`))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(data))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRetryGivesUpAfterConfiguredAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Retry: resilience.FromRetryConfig(2, 1)})
	_, err := f.Download(context.Background(), srv.URL+"/down")
	require.Error(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestDefaultRetryPolicy(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 3, f.opts.Retry.MaxAttempts)
	assert.Equal(t, time.Second, f.opts.Retry.InitialBackoff)
}

func TestProbeReportsStatusAndContentType(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := newTestFetcher().Probe(context.Background(), http.MethodHead, srv.URL+"/ar.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, int32(1), attempts.Load(), "probes are never retried")
}

func TestProbeConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher().Probe(context.Background(), http.MethodGet, url)
	require.Error(t, err)
}

func TestConfiguredRateLimiterIsUsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	host := srv.Listener.Addr().String()
	lim := rate.NewLimiter(rate.Inf, 1)
	f := NewHTTPFetcher(HTTPOptions{RateLimiters: map[string]*rate.Limiter{host: lim}})

	_, err := f.Probe(context.Background(), http.MethodGet, srv.URL)
	require.NoError(t, err)
	assert.Same(t, lim, f.limiters[host])
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)
	for range 10 {
		a.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(a.Limit()), 0.001)

	for range 10 {
		a.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(a.Limit()), 0.001)
}
