// Package yahoo provides a client for the unofficial Yahoo Finance JSON
// endpoints: symbol search, quote summary and fundamentals time series.
package yahoo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://query2.finance.yahoo.com"
	defaultCookieURL = "https://fc.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// Client defines the Yahoo Finance operations used by the pipeline.
type Client interface {
	// SearchQuotes looks up instruments matching query.
	SearchQuotes(ctx context.Context, query string, count int) ([]Quote, error)
	// Profile returns company profile and financial data for symbol.
	Profile(ctx context.Context, symbol string) (*Profile, error)
	// Financials returns the latest annual revenue and total assets for symbol.
	Financials(ctx context.Context, symbol string) (*Financials, error)
}

// Quote is one symbol search hit.
type Quote struct {
	Symbol    string `json:"symbol"`
	QuoteType string `json:"quoteType"`
	Exchange  string `json:"exchange"`
	ShortName string `json:"shortname"`
	LongName  string `json:"longname"`
}

// Profile holds the quoteSummary assetProfile and financialData fields.
type Profile struct {
	Country             string
	Website             string
	FullTimeEmployees   *int64
	Sector              string
	Industry            string
	LongBusinessSummary string
	FinancialCurrency   string
}

// Financials holds the most recent annual statement values.
type Financials struct {
	// Year is the fiscal year of the most recent income statement.
	Year         int
	TotalRevenue *float64
	TotalAssets  *float64
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCookieURL overrides the URL used to obtain session cookies.
func WithCookieURL(u string) Option {
	return func(c *httpClient) {
		c.cookieURL = u
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

type httpClient struct {
	baseURL   string
	cookieURL string
	userAgent string
	http      *http.Client

	mu    sync.Mutex
	crumb string
}

// NewClient creates a Yahoo Finance client with its own cookie jar.
func NewClient(opts ...Option) Client {
	jar, _ := cookiejar.New(nil)
	c := &httpClient{
		baseURL:   defaultBaseURL,
		cookieURL: defaultCookieURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Jar:     jar,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "yahoo: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "yahoo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "yahoo: read response")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) getJSON(ctx context.Context, rawURL string, out any) error {
	body, status, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return eris.Errorf("yahoo: unexpected status %d from %s", status, rawURL)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "yahoo: unmarshal response")
	}
	return nil
}

func (c *httpClient) SearchQuotes(ctx context.Context, query string, count int) ([]Quote, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotes_count", strconv.Itoa(count))

	var resp struct {
		Quotes []Quote `json:"quotes"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/v1/finance/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

// sessionCrumb returns the crumb that quoteSummary requires, fetching the
// session cookie and crumb once per client.
func (c *httpClient) sessionCrumb(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crumb != "" {
		return c.crumb, nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	if _, _, err := c.get(ctx, c.cookieURL); err != nil {
		return "", eris.Wrap(err, "yahoo: fetch session cookie")
	}

	body, status, err := c.get(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", err
	}
	crumb := strings.TrimSpace(string(body))
	if status != http.StatusOK || crumb == "" {
		return "", eris.Errorf("yahoo: crumb unavailable (status %d)", status)
	}
	c.crumb = crumb
	return crumb, nil
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Country             string `json:"country"`
				Website             string `json:"website"`
				FullTimeEmployees   *int64 `json:"fullTimeEmployees"`
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
			FinancialData struct {
				FinancialCurrency string `json:"financialCurrency"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (c *httpClient) Profile(ctx context.Context, symbol string) (*Profile, error) {
	crumb, err := c.sessionCrumb(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("modules", "assetProfile,financialData")
	params.Set("crumb", crumb)

	var resp quoteSummaryResponse
	rawURL := c.baseURL + "/v10/finance/quoteSummary/" + url.PathEscape(symbol) + "?" + params.Encode()
	if err := c.getJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, eris.Errorf("yahoo: quote summary %s: %s", e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, eris.Errorf("yahoo: no quote summary for %s", symbol)
	}

	r := resp.QuoteSummary.Result[0]
	return &Profile{
		Country:             r.AssetProfile.Country,
		Website:             r.AssetProfile.Website,
		FullTimeEmployees:   r.AssetProfile.FullTimeEmployees,
		Sector:              r.AssetProfile.Sector,
		Industry:            r.AssetProfile.Industry,
		LongBusinessSummary: r.AssetProfile.LongBusinessSummary,
		FinancialCurrency:   r.FinancialData.FinancialCurrency,
	}, nil
}

type timeseriesPoint struct {
	AsOfDate      string   `json:"asOfDate"`
	ReportedValue rawValue `json:"reportedValue"`
}

type timeseriesResponse struct {
	Timeseries struct {
		Result []map[string]json.RawMessage `json:"result"`
	} `json:"timeseries"`
}

const (
	seriesRevenue = "annualTotalRevenue"
	seriesAssets  = "annualTotalAssets"
)

func (c *httpClient) Financials(ctx context.Context, symbol string) (*Financials, error) {
	now := time.Now()
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("type", seriesRevenue+","+seriesAssets)
	params.Set("period1", strconv.FormatInt(now.AddDate(-6, 0, 0).Unix(), 10))
	params.Set("period2", strconv.FormatInt(now.Unix(), 10))

	var resp timeseriesResponse
	rawURL := c.baseURL + "/ws/fundamentals-timeseries/v1/finance/timeseries/" + url.PathEscape(symbol) + "?" + params.Encode()
	if err := c.getJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}

	series := make(map[string][]timeseriesPoint)
	for _, result := range resp.Timeseries.Result {
		for _, name := range []string{seriesRevenue, seriesAssets} {
			raw, ok := result[name]
			if !ok {
				continue
			}
			var points []timeseriesPoint
			if err := json.Unmarshal(raw, &points); err != nil {
				return nil, eris.Wrapf(err, "yahoo: decode %s", name)
			}
			series[name] = append(series[name], points...)
		}
	}

	revenueYear, revenue := latest(series[seriesRevenue])
	if revenueYear == 0 {
		return nil, eris.Errorf("yahoo: no annual income statement for %s", symbol)
	}
	_, assets := latest(series[seriesAssets])

	return &Financials{
		Year:         revenueYear,
		TotalRevenue: revenue,
		TotalAssets:  assets,
	}, nil
}

// latest returns the year and value of the most recent point carrying a
// value. Points are ordered by asOfDate, which is an ISO date.
func latest(points []timeseriesPoint) (int, *float64) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AsOfDate > points[j].AsOfDate
	})
	for _, p := range points {
		if p.ReportedValue.Raw == nil || len(p.AsOfDate) < 4 {
			continue
		}
		year, err := strconv.Atoi(p.AsOfDate[:4])
		if err != nil {
			continue
		}
		return year, p.ReportedValue.Raw
	}
	return 0, nil
}
