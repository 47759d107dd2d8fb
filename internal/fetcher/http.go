package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mne-enrich/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Retry        resilience.RetryConfig
	RateLimiters map[string]*rate.Limiter
	// InsecureSkipVerify disables TLS certificate checks. Corporate report
	// hosts frequently serve broken chains.
	InsecureSkipVerify bool
}

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success (up to 2x
// the initial rate) and halves on 429 (down to a quarter of it).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.adjust(1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.adjust(0.5)
	zap.L().Warn("fetcher: reducing rate after 429", zap.Float64("new_rate", float64(a.Limit())))
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

func (a *AdaptiveLimiter) adjust(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.currentRate * rate.Limit(factor)
	next = min(max(next, a.minRate), a.maxRate)
	a.currentRate = next
	a.limiter.SetLimit(next)
}

// DefaultAdaptiveLimiters returns adaptive limiters for the public APIs the
// pipeline hits hardest.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"recherche-entreprises.api.gouv.fr": NewAdaptiveLimiter(7, 7),
		"annuaire-entreprises.data.gouv.fr": NewAdaptiveLimiter(5, 5),
		"finance.yahoo.com":                 NewAdaptiveLimiter(2, 2),
		"data.europa.eu":                    NewAdaptiveLimiter(5, 5),
	}
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	adaptive map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.FromRetryConfig(3, 1000)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // configurable for report hosts
		},
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
		adaptive: DefaultAdaptiveLimiters(),
	}
}

// wait blocks on the host's limiter. Hosts without a configured limiter get
// a shared default of 20 req/s created on first use.
func (f *HTTPFetcher) wait(ctx context.Context, host string) (*AdaptiveLimiter, error) {
	if a, ok := f.adaptive[host]; ok {
		if err := a.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		return a, nil
	}

	f.mu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(20, 20)
		f.limiters[host] = lim
	}
	f.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}
	return nil, nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, rawURL string, opts []RequestOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// doWithRetry retries network errors, 429 and 5xx responses.
func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	cfg := f.opts.Retry
	cfg.OnRetry = resilience.RetryLogger("fetcher", req.Method+" "+host)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		adaptive, err := f.wait(ctx, host)
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: %s %s", req.Method, req.URL), 0)
		}

		if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
			adaptive.OnRateLimit()
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return nil, resilience.StatusError("fetcher", resp.StatusCode, req.URL.String())
		}

		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	})
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string, opts ...RequestOption) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL, opts)
	if err != nil {
		return nil, err
	}

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// GetJSON fetches the URL and decodes the JSON body into out.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, out any, opts ...RequestOption) error {
	opts = append([]RequestOption{WithHeader("Accept", "application/json")}, opts...)
	body, err := f.Download(ctx, rawURL, opts...)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return eris.Wrapf(err, "fetcher: decode json from %s", rawURL)
	}
	return nil
}

// Probe issues one request without retries and reports status and content type.
func (f *HTTPFetcher) Probe(ctx context.Context, method, rawURL string, opts ...RequestOption) (*ProbeResult, error) {
	req, err := f.newRequest(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	adaptive, err := f.wait(ctx, req.URL.Host)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: probe %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if adaptive != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			adaptive.OnRateLimit()
		} else {
			adaptive.OnSuccess()
		}
	}

	return &ProbeResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
