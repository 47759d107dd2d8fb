package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/linkcheck"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/search"
	"github.com/sells-group/mne-enrich/pkg/anthropic"
)

const annualReportSystemPrompt = `You identify the annual financial report of a company among web search results.
Pick the direct link to the PDF of the most recent consolidated annual report (or universal registration document) published by the company itself, and give the fiscal year it covers.
Ignore interim reports, sustainability-only reports, press articles and documents about other companies.
If no candidate qualifies, return null for both fields.`

const annualReportUserPrompt = `Company: %s

Candidate documents:%s`

var annualReportSchema = anthropic.Schema{
	Name:        "annual_report",
	Description: "Report the selected annual report PDF and its fiscal year.",
	Properties: map[string]any{
		"pdf_url": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Direct link to the PDF",
		},
		"year": map[string]any{
			"type":        []string{"integer", "null"},
			"description": "Fiscal year of the annual financial report",
		},
	},
	Required: []string{"pdf_url", "year"},
}

// AnnualReportConfig configures the annual report discovery.
type AnnualReportConfig struct {
	Model     string
	MaxTokens int64
	// QueryTemplate may reference {name} and {year}.
	QueryTemplate string
	// ReportYear fills {year} in the query.
	ReportYear int
	// MinCacheYear is the oldest report year worth caching.
	MinCacheYear int
}

func (c *AnnualReportConfig) applyDefaults() {
	if c.QueryTemplate == "" {
		c.QueryTemplate = "{name} annual report {year} pdf"
	}
	if c.ReportYear == 0 {
		c.ReportYear = ReferenceYear
	}
	if c.MinCacheYear == 0 {
		c.MinCacheYear = ReferenceYear
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 512
	}
}

// AnnualReports finds the latest annual report PDF of an entity by letting
// the LLM choose among validated search results.
type AnnualReports struct {
	searcher  search.Provider
	validator *linkcheck.Validator
	llm       anthropic.Client
	cache     *cache.Reports
	cfg       AnnualReportConfig
}

// NewAnnualReports creates the annual report fetcher.
func NewAnnualReports(searcher search.Provider, validator *linkcheck.Validator, llm anthropic.Client, reports *cache.Reports, cfg AnnualReportConfig) *AnnualReports {
	cfg.applyDefaults()
	return &AnnualReports{
		searcher:  searcher,
		validator: validator,
		llm:       llm,
		cache:     reports,
		cfg:       cfg,
	}
}

// Name implements Fetcher.
func (a *AnnualReports) Name() string {
	return "annual_report"
}

// Query returns the search query for e.
func (a *AnnualReports) Query(e model.Entity) string {
	return strings.NewReplacer(
		"{name}", e.Name,
		"{year}", strconv.Itoa(a.cfg.ReportYear),
	).Replace(a.cfg.QueryTemplate)
}

// Fetch implements Fetcher. The returned error wraps a *cache.WriteError when
// a discovered report could not be persisted.
func (a *AnnualReports) Fetch(ctx context.Context, req Request) (*Result, error) {
	e := req.Entity
	log := zap.L().With(zap.Int("entity_id", e.ID), zap.String("entity", e.Name))

	if entry, ok := a.cache.Get(e.Name); ok {
		log.Debug("sources: annual report cache hit")
		return &Result{Report: &model.AnnualReport{
			EntityID:   e.ID,
			EntityName: e.Name,
			PDFURL:     model.Ptr(entry.URL),
			Year:       model.Ptr(entry.Year),
		}}, nil
	}

	results := a.searcher.Search(ctx, a.Query(e))
	if len(results) == 0 {
		log.Info("sources: no annual report candidates")
		return nil, nil
	}

	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	checks := a.validator.Validate(ctx, urls)

	candidates := formatCandidates(results, checks)
	report := &model.AnnualReport{EntityID: e.ID, EntityName: e.Name}
	if candidates == "" {
		log.Info("sources: no reachable annual report candidates", zap.Int("results", len(results)))
		return &Result{Report: report}, nil
	}

	var out struct {
		PDFURL *string `json:"pdf_url"`
		Year   *int    `json:"year"`
	}
	err := anthropic.Complete(ctx, a.llm, anthropic.CompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      annualReportSystemPrompt,
		Prompt:      fmt.Sprintf(annualReportUserPrompt, e.Name, candidates),
		Temperature: 0.1,
		Phase:       "annual_report",
	}, annualReportSchema, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "sources: select annual report for %s", e.Name)
	}
	report.PDFURL = out.PDFURL
	report.Year = out.Year
	log.Info("sources: annual report selected",
		zap.Stringp("pdf_url", report.PDFURL),
		zap.Intp("year", report.Year),
	)

	if report.PDFURL != nil && *report.PDFURL != "" && report.Year != nil && *report.Year >= a.cfg.MinCacheYear {
		if err := a.cache.Put(e.Name, cache.ReportEntry{Year: *report.Year, URL: *report.PDFURL}); err != nil {
			return nil, err
		}
	}
	return &Result{Report: report}, nil
}

// formatCandidates renders the reachable results as a numbered markdown
// list. Numbers follow the position in the full result list.
func formatCandidates(results []model.SearchResult, checks []linkcheck.Check) string {
	var items []string
	for i, r := range results {
		if !checks[i].Valid {
			continue
		}
		items = append(items, fmt.Sprintf("%d. [%s](%s)\n%s",
			i, strings.TrimSpace(r.Title), r.URL, strings.TrimSpace(r.Description)))
	}
	if len(items) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(items, "\n\n")
}
