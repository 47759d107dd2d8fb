// Package linkcheck probes candidate URLs concurrently and reports which of
// them serve the expected content type.
package linkcheck

import (
	"context"
	"mime"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mne-enrich/internal/fetcher"
)

// DefaultTimeout bounds each probe.
const DefaultTimeout = 30 * time.Second

// Check is the outcome for one URL.
type Check struct {
	URL   string
	Valid bool
	// Err is set when the probe itself failed (timeout, DNS, TLS).
	Err error
}

// Validator checks reachability and content type of URLs.
type Validator struct {
	fetcher     fetcher.Fetcher
	contentType string
	timeout     time.Duration
	concurrency int
}

// Option configures a Validator.
type Option func(*Validator)

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		v.timeout = d
	}
}

// WithConcurrency caps the number of probes in flight. Zero means unbounded.
func WithConcurrency(n int) Option {
	return func(v *Validator) {
		v.concurrency = n
	}
}

// New creates a Validator accepting responses whose media type equals contentType.
func New(f fetcher.Fetcher, contentType string, opts ...Option) *Validator {
	v := &Validator{
		fetcher:     f,
		contentType: contentType,
		timeout:     DefaultTimeout,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate probes every URL concurrently and returns one Check per input,
// aligned by index. It never fails as a whole.
func (v *Validator) Validate(ctx context.Context, urls []string) []Check {
	checks := make([]Check, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	if v.concurrency > 0 {
		g.SetLimit(v.concurrency)
	}
	for i, u := range urls {
		g.Go(func() error {
			checks[i] = v.check(gCtx, u)
			return nil
		})
	}
	_ = g.Wait()

	return checks
}

// Valid returns the URLs that passed, preserving input order.
func Valid(checks []Check) []string {
	var out []string
	for _, c := range checks {
		if c.Valid {
			out = append(out, c.URL)
		}
	}
	return out
}

func (v *Validator) check(ctx context.Context, rawURL string) Check {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	res, err := v.fetcher.Probe(ctx, http.MethodGet, rawURL)
	if err != nil {
		zap.L().Debug("linkcheck: probe failed", zap.String("url", rawURL), zap.Error(err))
		return Check{URL: rawURL, Err: eris.Wrap(err, "linkcheck: probe")}
	}

	return Check{
		URL:   rawURL,
		Valid: res.StatusCode == http.StatusOK && v.matches(res.ContentType),
	}
}

func (v *Validator) matches(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return mediaType == v.contentType
}
