// Package sources resolves an entity to the external documents that back
// its facts: annual reports, Wikipedia pages, Yahoo Finance pages and
// official business registers.
package sources

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/model"
)

// ReferenceYear is the citation year given to undated sources.
const ReferenceYear = 2024

// Source names written to citations.
const (
	SourceWikipedia = "Wikipedia"
	SourceYahoo     = "Yahoo"
	SourceAnnuaire  = "Annuaire Entreprise"
)

// ErrNoFetcher is returned when no register fetcher exists for a country.
var ErrNoFetcher = eris.New("sources: no fetcher")

// Request identifies the entity to look up. Country is only used by the
// official register.
type Request struct {
	Entity  model.Entity
	Country string
}

// Result is what a fetcher found for one entity.
type Result struct {
	Citations []model.Citation
	Report    *model.AnnualReport
	// AuxID is a source specific identifier such as a ticker or QID.
	AuxID string
}

// Fetcher resolves an entity against one source. A nil Result with a nil
// error means the source has nothing for the entity.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Result, error)
}

func citation(e model.Entity, source, url string, year int) model.Citation {
	return model.Citation{
		EntityID:   e.ID,
		EntityName: e.Name,
		SourceName: source,
		URL:        url,
		Year:       year,
	}
}
