package search

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/resilience"
	"github.com/sells-group/mne-enrich/pkg/duckduckgo"
)

// UserAgents is the identity rotation used against DuckDuckGo.
var UserAgents = []string{
	"Mozilla/5.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
	"Mozilla/5.0 (X11; Linux x86_64)",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:112.0) Gecko/20100101 Firefox/112.0",
}

// DuckDuckGo searches the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	client     duckduckgo.Client
	maxResults int
	breaker    *resilience.CircuitBreaker
	pick       func(n int) int
}

// NewDuckDuckGo creates a DuckDuckGo provider. breaker may be nil.
func NewDuckDuckGo(client duckduckgo.Client, maxResults int, breaker *resilience.CircuitBreaker) *DuckDuckGo {
	return &DuckDuckGo{
		client:     client,
		maxResults: maxResults,
		breaker:    breaker,
		pick:       rand.IntN,
	}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

// Search implements Provider. A blocked first attempt is retried once with a
// different user agent.
func (d *DuckDuckGo) Search(ctx context.Context, query string) []model.SearchResult {
	return guarded(ctx, d.Name(), query, d.breaker, func(ctx context.Context) ([]model.SearchResult, error) {
		first := d.pick(len(UserAgents))
		hits, err := d.client.Search(ctx, query, d.maxResults, UserAgents[first])
		if err != nil {
			zap.L().Warn("search: duckduckgo blocked initial search, retrying with new headers", zap.Error(err))
			second := first
			if len(UserAgents) > 1 {
				second = (first + 1 + d.pick(len(UserAgents)-1)) % len(UserAgents)
			}
			hits, err = d.client.Search(ctx, query, d.maxResults, UserAgents[second])
			if err != nil {
				return nil, err
			}
		}

		out := make([]model.SearchResult, 0, len(hits))
		for _, h := range hits {
			out = append(out, model.SearchResult{URL: h.URL, Title: h.Title, Description: h.Snippet})
		}
		return out, nil
	})
}
