package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/pkg/yahoo"
)

// Yahoo quote pages.
const (
	PageProfile      = "profile"
	PageFinancials   = "financials"
	PageBalanceSheet = "balance-sheet"
)

const tickerSearchCount = 10

// DefaultExchanges are the Yahoo exchange codes accepted for a ticker.
var DefaultExchanges = []string{
	"CXE", "NYQ", "FRA", "PAR", "GER", "VIE", "SHZ", "BUD",
	"OQX", "SHH", "OEM", "IOB", "CPH", "HEL", "MCE",
}

// YahooConfig configures the Yahoo fetcher.
type YahooConfig struct {
	// QuoteURL is the base of the public quote pages.
	QuoteURL  string
	Exchanges []string
}

// Yahoo resolves an entity to its equity ticker and Yahoo Finance pages.
type Yahoo struct {
	client    yahoo.Client
	http      fetcher.Fetcher
	tickers   *cache.Tickers
	overrides *Overrides
	quoteURL  string
	exchanges map[string]bool
}

// NewYahoo creates the Yahoo fetcher.
func NewYahoo(client yahoo.Client, f fetcher.Fetcher, tickers *cache.Tickers, overrides *Overrides, cfg YahooConfig) *Yahoo {
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = "https://finance.yahoo.com/quote"
	}
	if len(cfg.Exchanges) == 0 {
		cfg.Exchanges = DefaultExchanges
	}
	exchanges := make(map[string]bool, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		exchanges[ex] = true
	}
	return &Yahoo{
		client:    client,
		http:      f,
		tickers:   tickers,
		overrides: overrides,
		quoteURL:  strings.TrimRight(cfg.QuoteURL, "/"),
		exchanges: exchanges,
	}
}

// Name implements Fetcher.
func (y *Yahoo) Name() string {
	return "yahoo"
}

// Client returns the underlying Yahoo Finance client.
func (y *Yahoo) Client() yahoo.Client {
	return y.client
}

// PageURL returns the public quote page of ticker.
func (y *Yahoo) PageURL(ticker, page string) string {
	return y.quoteURL + "/" + url.PathEscape(ticker) + "/" + page + "/"
}

// Ticker returns the cached or searched ticker for a registry name, or ""
// when no listed equity matches. New tickers are written to the cache.
func (y *Yahoo) Ticker(ctx context.Context, name string) (string, error) {
	if t, ok := y.tickers.Get(name); ok {
		return t, nil
	}

	query := y.overrides.TickerQuery(name)
	quotes, err := y.client.SearchQuotes(ctx, query, tickerSearchCount)
	if err != nil {
		return "", eris.Wrapf(err, "sources: yahoo ticker search %q", query)
	}

	for _, q := range quotes {
		if q.QuoteType != "EQUITY" || !y.exchanges[q.Exchange] {
			continue
		}
		if err := y.tickers.Put(name, q.Symbol); err != nil {
			return "", err
		}
		return q.Symbol, nil
	}

	zap.L().Info("sources: no yahoo ticker",
		zap.String("entity", name),
		zap.String("query", query),
		zap.Int("quotes", len(quotes)),
	)
	return "", nil
}

// Listing is a resolved Yahoo Finance listing.
type Listing struct {
	Ticker     string
	Financials *yahoo.Financials
	// Citations are the profile, financials and balance-sheet pages, all
	// dated with the most recent income statement year.
	Citations []model.Citation
}

// Lookup resolves e to its listing. It returns nil when no ticker matches,
// the profile page is unavailable or no annual statement exists.
func (y *Yahoo) Lookup(ctx context.Context, e model.Entity) (*Listing, error) {
	ticker, err := y.Ticker(ctx, e.Name)
	if err != nil || ticker == "" {
		return nil, err
	}

	profileURL := y.PageURL(ticker, PageProfile)
	probe, err := y.http.Probe(ctx, http.MethodHead, profileURL)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: probe %s", profileURL)
	}
	if probe.StatusCode != http.StatusOK {
		zap.L().Warn("sources: yahoo profile page unavailable",
			zap.String("ticker", ticker),
			zap.Int("status", probe.StatusCode),
		)
		return nil, nil
	}

	fin, err := y.client.Financials(ctx, ticker)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: yahoo financials %s", ticker)
	}
	if fin.Year == 0 {
		zap.L().Warn("sources: yahoo has no annual statements", zap.String("ticker", ticker))
		return nil, nil
	}

	return &Listing{
		Ticker:     ticker,
		Financials: fin,
		Citations: []model.Citation{
			citation(e, SourceYahoo, profileURL, fin.Year),
			citation(e, SourceYahoo, y.PageURL(ticker, PageFinancials), fin.Year),
			citation(e, SourceYahoo, y.PageURL(ticker, PageBalanceSheet), fin.Year),
		},
	}, nil
}

// Fetch implements Fetcher. AuxID is the ticker.
func (y *Yahoo) Fetch(ctx context.Context, req Request) (*Result, error) {
	l, err := y.Lookup(ctx, req.Entity)
	if err != nil || l == nil {
		return nil, err
	}
	return &Result{Citations: l.Citations, AuxID: l.Ticker}, nil
}
