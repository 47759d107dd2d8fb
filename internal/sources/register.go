package sources

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/model"
)

// Register dispatches to the official business register of the entity's
// country.
type Register struct {
	byCountry map[string]Fetcher
}

// NewRegister creates a register dispatcher over a country code table.
func NewRegister(byCountry map[string]Fetcher) *Register {
	table := make(map[string]Fetcher, len(byCountry))
	for code, f := range byCountry {
		table[strings.ToUpper(code)] = f
	}
	return &Register{byCountry: table}
}

// DefaultRegisters returns the built-in country table.
func DefaultRegisters(f fetcher.Fetcher, cfg AnnuaireConfig) map[string]Fetcher {
	return map[string]Fetcher{
		"FR": NewAnnuaire(f, cfg),
	}
}

// Name implements Fetcher.
func (r *Register) Name() string {
	return "register"
}

// Countries lists the supported country codes.
func (r *Register) Countries() []string {
	return slices.Sorted(maps.Keys(r.byCountry))
}

// Fetch implements Fetcher. It returns an error wrapping ErrNoFetcher when
// the country has no register.
func (r *Register) Fetch(ctx context.Context, req Request) (*Result, error) {
	f, ok := r.byCountry[strings.ToUpper(req.Country)]
	if !ok {
		return nil, eris.Wrapf(ErrNoFetcher, "sources: country %q", req.Country)
	}
	return f.Fetch(ctx, req)
}

// AnnuaireConfig configures the French register fetcher.
type AnnuaireConfig struct {
	SearchURL string
	PageURL   string
}

// Annuaire looks up large French companies in the recherche-entreprises API
// and cites their annuaire-entreprises page.
type Annuaire struct {
	http      fetcher.Fetcher
	searchURL string
	pageURL   string
}

// NewAnnuaire creates the French register fetcher.
func NewAnnuaire(f fetcher.Fetcher, cfg AnnuaireConfig) *Annuaire {
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://recherche-entreprises.api.gouv.fr/search"
	}
	if cfg.PageURL == "" {
		cfg.PageURL = "https://annuaire-entreprises.data.gouv.fr/entreprise"
	}
	return &Annuaire{
		http:      f,
		searchURL: cfg.SearchURL,
		pageURL:   strings.TrimRight(cfg.PageURL, "/"),
	}
}

// Name implements Fetcher.
func (a *Annuaire) Name() string {
	return "annuaire"
}

// headOfficeDivision is NACE 70, activities of head offices.
const headOfficeDivision = "70"

type annuaireResponse struct {
	Results []struct {
		SIREN              string `json:"siren"`
		ActivitePrincipale string `json:"activite_principale"`
	} `json:"results"`
}

// Fetch implements Fetcher.
func (a *Annuaire) Fetch(ctx context.Context, req Request) (*Result, error) {
	e := req.Entity
	var resp annuaireResponse
	err := a.http.GetJSON(ctx, a.searchURL, &resp, fetcher.WithQuery(map[string]string{
		"q":                    registerName(e.Name),
		"categorie_entreprise": "GE",
	}))
	if err != nil {
		return nil, eris.Wrapf(err, "sources: annuaire search %s", e.Name)
	}
	if len(resp.Results) == 0 || resp.Results[0].SIREN == "" {
		zap.L().Info("sources: no annuaire match", zap.String("entity", e.Name))
		return nil, nil
	}
	hit := resp.Results[0]

	pageURL := a.pageURL + "/" + hit.SIREN
	probe, err := a.http.Probe(ctx, http.MethodHead, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: probe %s", pageURL)
	}
	if probe.StatusCode != http.StatusOK {
		zap.L().Warn("sources: annuaire page unavailable",
			zap.String("url", pageURL),
			zap.Int("status", probe.StatusCode),
		)
		return nil, nil
	}

	c := citation(e, SourceAnnuaire, pageURL, ReferenceYear)
	c.NationalID = model.Ptr(hit.SIREN)
	if len(hit.ActivitePrincipale) >= 2 {
		if division := hit.ActivitePrincipale[:2]; division != headOfficeDivision {
			c.Activity = model.Ptr(division)
		}
	}
	return &Result{Citations: []model.Citation{c}, AuxID: hit.SIREN}, nil
}
