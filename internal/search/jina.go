package search

import (
	"context"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/resilience"
	"github.com/sells-group/mne-enrich/pkg/jina"
)

// Jina searches through the Jina AI search API.
type Jina struct {
	client     jina.Client
	maxResults int
	breaker    *resilience.CircuitBreaker
}

// NewJina creates a Jina provider. breaker may be nil.
func NewJina(client jina.Client, maxResults int, breaker *resilience.CircuitBreaker) *Jina {
	return &Jina{client: client, maxResults: maxResults, breaker: breaker}
}

// Name implements Provider.
func (j *Jina) Name() string {
	return "jina"
}

// Search implements Provider.
func (j *Jina) Search(ctx context.Context, query string) []model.SearchResult {
	return guarded(ctx, j.Name(), query, j.breaker, func(ctx context.Context) ([]model.SearchResult, error) {
		resp, err := j.client.Search(ctx, query)
		if err != nil {
			return nil, err
		}

		var out []model.SearchResult
		for _, r := range resp.Data {
			if !validURL(r.URL) {
				continue
			}
			out = append(out, model.SearchResult{URL: r.URL, Title: r.Title, Description: r.Description})
			if j.maxResults > 0 && len(out) == j.maxResults {
				break
			}
		}
		return out, nil
	})
}
