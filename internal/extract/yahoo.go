package extract

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/sources"
	"github.com/sells-group/mne-enrich/pkg/yahoo"
)

// Yahoo extracts facts from the Yahoo Finance listing of an entity. Every
// fact is dated with the most recent income statement year.
type Yahoo struct {
	fetcher *sources.Yahoo
}

// NewYahoo creates the Yahoo extractor.
func NewYahoo(f *sources.Yahoo) *Yahoo {
	return &Yahoo{fetcher: f}
}

// Name implements Extractor.
func (y *Yahoo) Name() string {
	return "yahoo"
}

// Extract implements Extractor.
func (y *Yahoo) Extract(ctx context.Context, e model.Entity) (*Extraction, error) {
	listing, err := y.fetcher.Lookup(ctx, e)
	if err != nil || listing == nil {
		return nil, err
	}

	ticker := listing.Ticker
	year := listing.Financials.Year
	profile := sync.OnceValues(func() (*yahoo.Profile, error) {
		return y.fetcher.Client().Profile(ctx, ticker)
	})
	currency := func() string {
		p, err := profile()
		if err != nil || p.FinancialCurrency == "" {
			return model.NoCurrency
		}
		return p.FinancialCurrency
	}

	profileURL := y.fetcher.PageURL(ticker, sources.PageProfile)
	slots := []slot{
		{model.VarCountry, profileURL, func(_ context.Context) (field, error) {
			p, err := profile()
			if err != nil {
				return field{}, err
			}
			if p.Country == "" {
				return field{}, nil
			}
			code, ok := CountryISO2(p.Country)
			if !ok {
				return field{}, eris.Errorf("extract: unknown country %q", p.Country)
			}
			return field{value: code, year: model.Ptr(year)}, nil
		}},
		{model.VarEmployees, profileURL, func(_ context.Context) (field, error) {
			p, err := profile()
			if err != nil || p.FullTimeEmployees == nil {
				return field{}, err
			}
			return field{value: *p.FullTimeEmployees, year: model.Ptr(year)}, nil
		}},
		{model.VarTurnover, y.fetcher.PageURL(ticker, sources.PageFinancials), func(_ context.Context) (field, error) {
			return moneyField(listing.Financials.TotalRevenue, year, currency()), nil
		}},
		{model.VarAssets, y.fetcher.PageURL(ticker, sources.PageBalanceSheet), func(_ context.Context) (field, error) {
			return moneyField(listing.Financials.TotalAssets, year, currency()), nil
		}},
		{model.VarWebsite, profileURL, func(_ context.Context) (field, error) {
			p, err := profile()
			if err != nil {
				return field{}, err
			}
			return stringField(p.Website, year), nil
		}},
		{model.VarActivity, profileURL, func(_ context.Context) (field, error) {
			p, err := profile()
			if err != nil {
				return field{}, err
			}
			if p.Sector == "" && p.Industry == "" && p.LongBusinessSummary == "" {
				return field{}, nil
			}
			activity := fmt.Sprintf("Sector: %s\nIndustry: %s\nDescription: %s", p.Sector, p.Industry, p.LongBusinessSummary)
			return stringField(activity, year), nil
		}},
	}

	return &Extraction{
		Facts:     run(ctx, y.Name(), e, slots),
		Citations: listing.Citations,
	}, nil
}

func moneyField(v *float64, year int, currency string) field {
	if v == nil {
		return field{}
	}
	return field{value: int64(math.Round(*v)), year: model.Ptr(year), currency: currency}
}
