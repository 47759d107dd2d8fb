package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/resilience"
	"github.com/sells-group/mne-enrich/pkg/google"
)

// Google searches the Google Custom Search API.
type Google struct {
	client     google.Client
	maxResults int
	breaker    *resilience.CircuitBreaker
}

// NewGoogle creates a Google provider. breaker may be nil.
func NewGoogle(client google.Client, maxResults int, breaker *resilience.CircuitBreaker) *Google {
	return &Google{client: client, maxResults: maxResults, breaker: breaker}
}

// Name implements Provider.
func (g *Google) Name() string {
	return "google"
}

// Search implements Provider. Items without a usable URL are skipped.
func (g *Google) Search(ctx context.Context, query string) []model.SearchResult {
	return guarded(ctx, g.Name(), query, g.breaker, func(ctx context.Context) ([]model.SearchResult, error) {
		resp, err := g.client.Search(ctx, query, g.maxResults)
		if err != nil {
			return nil, err
		}

		out := make([]model.SearchResult, 0, len(resp.Items))
		for _, item := range resp.Items {
			if !validURL(item.Link) {
				zap.L().Warn("search: skipping invalid google result url", zap.String("url", item.Link))
				continue
			}
			out = append(out, model.SearchResult{URL: item.Link, Title: item.Title, Description: item.Snippet})
		}
		return out, nil
	})
}
