package extract

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/sources"
	"github.com/sells-group/mne-enrich/pkg/wikipedia"
)

// Wikidata properties.
const (
	propCountry      = "P17"
	propWebsite      = "P856"
	propEmployees    = "P1128"
	propTurnover     = "P2139"
	propAssets       = "P2403"
	propPointInTime  = "P585"
	propCurrencyCode = "P498"
)

// Wikipedia extracts facts from an entity's Wikipedia article and the
// Wikidata item linked to it.
type Wikipedia struct {
	fetcher *sources.Wikipedia
	client  wikipedia.Client
}

// NewWikipedia creates the Wikipedia extractor.
func NewWikipedia(f *sources.Wikipedia, client wikipedia.Client) *Wikipedia {
	return &Wikipedia{fetcher: f, client: client}
}

// Name implements Extractor.
func (w *Wikipedia) Name() string {
	return "wikipedia"
}

// Extract implements Extractor.
func (w *Wikipedia) Extract(ctx context.Context, e model.Entity) (*Extraction, error) {
	page, err := w.fetcher.Resolve(ctx, e)
	if err != nil || page == nil {
		return nil, err
	}

	item := sync.OnceValues(func() (*wikipedia.Entity, error) {
		if page.QID == "" {
			return nil, eris.Errorf("extract: page %q has no wikidata item", page.Title)
		}
		return w.client.Entity(ctx, page.QID)
	})

	slots := []slot{
		{model.VarCountry, page.URL, func(ctx context.Context) (field, error) {
			ent, err := item()
			if err != nil {
				return field{}, err
			}
			return w.country(ctx, ent)
		}},
		{model.VarEmployees, page.URL, func(ctx context.Context) (field, error) {
			ent, err := item()
			if err != nil {
				return field{}, err
			}
			return w.amount(ctx, ent, propEmployees, false)
		}},
		{model.VarTurnover, page.URL, func(ctx context.Context) (field, error) {
			ent, err := item()
			if err != nil {
				return field{}, err
			}
			return w.amount(ctx, ent, propTurnover, true)
		}},
		{model.VarAssets, page.URL, func(ctx context.Context) (field, error) {
			ent, err := item()
			if err != nil {
				return field{}, err
			}
			return w.amount(ctx, ent, propAssets, true)
		}},
		{model.VarWebsite, page.URL, func(_ context.Context) (field, error) {
			ent, err := item()
			if err != nil {
				return field{}, err
			}
			claims := ent.Claims[propWebsite]
			if len(claims) == 0 {
				return field{}, nil
			}
			site, _ := claims[0].MainSnak.String()
			return stringField(site, sources.ReferenceYear), nil
		}},
		{model.VarActivity, page.URL, func(_ context.Context) (field, error) {
			return stringField(page.Summary, sources.ReferenceYear), nil
		}},
	}

	return &Extraction{
		Facts:     run(ctx, w.Name(), e, slots),
		Citations: []model.Citation{w.fetcher.Citation(e, page)},
	}, nil
}

// country resolves the P17 item to its English label and then to ISO2.
func (w *Wikipedia) country(ctx context.Context, ent *wikipedia.Entity) (field, error) {
	claims := ent.Claims[propCountry]
	if len(claims) == 0 {
		return field{}, nil
	}
	id, ok := claims[0].MainSnak.EntityID()
	if !ok {
		return field{}, nil
	}

	country, err := w.client.Entity(ctx, id)
	if err != nil {
		return field{}, eris.Wrapf(err, "extract: country item %s", id)
	}
	label, ok := country.Label("en")
	if !ok {
		return field{}, nil
	}
	code, ok := CountryISO2(label)
	if !ok {
		return field{}, eris.Errorf("extract: unknown country %q", label)
	}
	return field{value: code, year: model.Ptr(sources.ReferenceYear)}, nil
}

// amount reads a quantity property. The claim with the latest P585 date
// wins; without any dated claim the first claim is used and the field has no
// year. withCurrency resolves the unit item to its ISO 4217 code.
func (w *Wikipedia) amount(ctx context.Context, ent *wikipedia.Entity, prop string, withCurrency bool) (field, error) {
	claims := ent.Claims[prop]
	if len(claims) == 0 {
		return field{}, nil
	}

	best := claims[0]
	var year *int
	for _, c := range claims {
		y, ok := claimYear(c)
		if !ok {
			continue
		}
		if year == nil || y > *year {
			best, year = c, model.Ptr(y)
		}
	}

	value, unit, ok := best.MainSnak.Quantity()
	if !ok {
		return field{}, nil
	}

	f := field{value: value, year: year}
	if withCurrency && unit != "" {
		code, err := w.currency(ctx, unit)
		if err != nil {
			return field{}, err
		}
		f.currency = code
	}
	return f, nil
}

func (w *Wikipedia) currency(ctx context.Context, unitID string) (string, error) {
	unit, err := w.client.Entity(ctx, unitID)
	if err != nil {
		return "", eris.Wrapf(err, "extract: currency item %s", unitID)
	}
	claims := unit.Claims[propCurrencyCode]
	if len(claims) == 0 {
		return "", nil
	}
	code, _ := claims[0].MainSnak.String()
	return code, nil
}

func claimYear(c wikipedia.Claim) (int, bool) {
	q := c.Qualifiers[propPointInTime]
	if len(q) == 0 {
		return 0, false
	}
	return q[0].Year()
}
