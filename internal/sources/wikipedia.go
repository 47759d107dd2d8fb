package sources

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/pkg/wikipedia"
)

// Wikipedia resolves an entity to its English Wikipedia article.
type Wikipedia struct {
	client    wikipedia.Client
	overrides *Overrides
}

// NewWikipedia creates the Wikipedia fetcher.
func NewWikipedia(client wikipedia.Client, overrides *Overrides) *Wikipedia {
	return &Wikipedia{client: client, overrides: overrides}
}

// Name implements Fetcher.
func (w *Wikipedia) Name() string {
	return "wikipedia"
}

// Resolve searches for the entity and loads the best matching page. It
// returns nil when the search has no hit.
func (w *Wikipedia) Resolve(ctx context.Context, e model.Entity) (*wikipedia.Page, error) {
	query := w.overrides.WikipediaQuery(e.Name)
	titles, err := w.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: wikipedia search %q", query)
	}
	if len(titles) == 0 {
		zap.L().Info("sources: no wikipedia page", zap.String("entity", e.Name), zap.String("query", query))
		return nil, nil
	}

	page, err := w.client.Page(ctx, titles[0])
	if err != nil {
		return nil, eris.Wrapf(err, "sources: wikipedia page %q", titles[0])
	}
	return page, nil
}

// Citation builds the citation of a resolved page.
func (w *Wikipedia) Citation(e model.Entity, page *wikipedia.Page) model.Citation {
	return citation(e, SourceWikipedia, page.URL, ReferenceYear)
}

// Fetch implements Fetcher. AuxID is the page's Wikidata item.
func (w *Wikipedia) Fetch(ctx context.Context, req Request) (*Result, error) {
	page, err := w.Resolve(ctx, req.Entity)
	if err != nil || page == nil {
		return nil, err
	}
	return &Result{
		Citations: []model.Citation{w.Citation(req.Entity, page)},
		AuxID:     page.QID,
	}, nil
}
