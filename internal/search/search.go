// Package search wraps web search backends behind a single Provider
// contract and fans queries out across several of them.
package search

import (
	"context"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/resilience"
)

// Provider is a web search backend. Search never fails: provider errors are
// logged and degrade to an empty result list.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) []model.SearchResult
}

// guarded runs fn through an optional circuit breaker and converts any
// failure into an empty result.
func guarded(ctx context.Context, name, query string, cb *resilience.CircuitBreaker, fn func(ctx context.Context) ([]model.SearchResult, error)) []model.SearchResult {
	var (
		results []model.SearchResult
		err     error
	)
	if cb != nil {
		results, err = resilience.ExecuteVal(ctx, cb, fn)
	} else {
		results, err = fn(ctx)
	}
	if err != nil {
		zap.L().Error("search: provider failed",
			zap.String("provider", name),
			zap.String("query", query),
			zap.Error(err),
		)
		return nil
	}
	if len(results) == 0 {
		zap.L().Warn("search: no results", zap.String("provider", name), zap.String("query", query))
	}
	return results
}

// validURL reports whether raw is an absolute http(s) URL.
func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Multi queries several providers concurrently.
type Multi struct {
	providers []Provider
}

// NewMulti creates a fan-out over providers. Provider order decides which
// duplicate survives.
func NewMulti(providers ...Provider) *Multi {
	return &Multi{providers: providers}
}

// Name implements Provider.
func (m *Multi) Name() string {
	return "multi"
}

// Search runs every provider concurrently and returns the union of their
// results in provider order, keeping the first occurrence of each URL.
func (m *Multi) Search(ctx context.Context, query string) []model.SearchResult {
	perProvider := make([][]model.SearchResult, len(m.providers))

	g, gCtx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		g.Go(func() error {
			perProvider[i] = p.Search(gCtx, query)
			return nil
		})
	}
	_ = g.Wait()

	return Dedup(perProvider...)
}

// Dedup concatenates result lists and drops repeated URLs, first occurrence wins.
func Dedup(lists ...[]model.SearchResult) []model.SearchResult {
	seen := make(map[string]struct{})
	var out []model.SearchResult
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
