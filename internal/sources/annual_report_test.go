package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/linkcheck"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/pkg/anthropic"
)

var airbus = model.Entity{ID: 7, Name: "AIRBUS SE"}

func pdfServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ar-2024.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/news.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newReports(t *testing.T) *cache.Reports {
	t.Helper()
	c, err := cache.Open[cache.ReportEntry](filepath.Join(t.TempDir(), "reports_cache.json"))
	require.NoError(t, err)
	return c
}

func newAnnualReports(searcher *stubProvider, llm *mockLLM, reports *cache.Reports) *AnnualReports {
	v := linkcheck.New(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), "application/pdf")
	return NewAnnualReports(searcher, v, llm, reports, AnnualReportConfig{Model: "claude-haiku-4-5-20251001"})
}

func TestAnnualReportQuery(t *testing.T) {
	a := newAnnualReports(&stubProvider{}, &mockLLM{}, nil)
	assert.Equal(t, "AIRBUS SE annual report 2024 pdf", a.Query(airbus))
}

func TestAnnualReportSelectsAndCaches(t *testing.T) {
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{
		{URL: srv.URL + "/news.html", Title: "News", Description: "Airbus results"},
		{URL: srv.URL + "/ar-2024.pdf", Title: " Annual Report 2024 ", Description: " Airbus SE annual report "},
	}}
	reports := newReports(t)

	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		prompt := req.Messages[0].Content
		return req.Temperature != nil && *req.Temperature == 0.1 &&
			req.ToolChoice == "annual_report" &&
			strings.Contains(prompt, "Company: AIRBUS SE") &&
			strings.Contains(prompt, "\n\n1. [Annual Report 2024]("+srv.URL+"/ar-2024.pdf)\nAirbus SE annual report") &&
			!strings.Contains(prompt, "news.html")
	})).Return(toolResponse("annual_report", map[string]any{
		"pdf_url": srv.URL + "/ar-2024.pdf",
		"year":    2024,
	}), nil).Once()

	a := newAnnualReports(searcher, llm, reports)
	res, err := a.Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, 7, res.Report.EntityID)
	assert.Equal(t, "AIRBUS SE", res.Report.EntityName)
	assert.Equal(t, srv.URL+"/ar-2024.pdf", *res.Report.PDFURL)
	assert.Equal(t, 2024, *res.Report.Year)

	entry, ok := reports.Get("AIRBUS SE")
	require.True(t, ok)
	assert.Equal(t, 2024, entry.Year)

	// Second call is served from the cache.
	res, err = a.Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	assert.Equal(t, 2024, *res.Report.Year)
	assert.Len(t, searcher.queries, 1)
	llm.AssertExpectations(t)
}

func TestAnnualReportOldYearNotCached(t *testing.T) {
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{{URL: srv.URL + "/ar-2024.pdf", Title: "AR"}}}
	reports := newReports(t)

	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolResponse("annual_report", map[string]any{"pdf_url": srv.URL + "/ar-2024.pdf", "year": 2022}), nil)

	res, err := newAnnualReports(searcher, llm, reports).Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	assert.Equal(t, 2022, *res.Report.Year)
	assert.Zero(t, reports.Len())
}

func TestAnnualReportNullAnswer(t *testing.T) {
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{{URL: srv.URL + "/ar-2024.pdf", Title: "AR"}}}
	reports := newReports(t)

	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolResponse("annual_report", map[string]any{"pdf_url": nil, "year": nil}), nil)

	res, err := newAnnualReports(searcher, llm, reports).Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	assert.Nil(t, res.Report.PDFURL)
	assert.Nil(t, res.Report.Year)
	assert.Zero(t, reports.Len())
}

func TestAnnualReportNoSearchResults(t *testing.T) {
	llm := &mockLLM{}
	res, err := newAnnualReports(&stubProvider{}, llm, newReports(t)).Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	assert.Nil(t, res)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnnualReportNoValidCandidates(t *testing.T) {
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{{URL: srv.URL + "/news.html", Title: "News"}}}
	llm := &mockLLM{}

	res, err := newAnnualReports(searcher, llm, newReports(t)).Fetch(context.Background(), Request{Entity: airbus})
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Nil(t, res.Report.PDFURL)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnnualReportLLMError(t *testing.T) {
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{{URL: srv.URL + "/ar-2024.pdf", Title: "AR"}}}
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	res, err := newAnnualReports(searcher, llm, newReports(t)).Fetch(context.Background(), Request{Entity: airbus})
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "overloaded")
	assert.False(t, cache.IsWriteError(err))
}

func TestAnnualReportCacheWriteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	srv := pdfServer(t)
	searcher := &stubProvider{results: []model.SearchResult{{URL: srv.URL + "/ar-2024.pdf", Title: "AR"}}}
	dir := t.TempDir()
	reports, err := cache.Open[cache.ReportEntry](filepath.Join(dir, "reports_cache.json"))
	require.NoError(t, err)
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(toolResponse("annual_report", map[string]any{"pdf_url": srv.URL + "/ar-2024.pdf", "year": 2024}), nil)

	_, err = newAnnualReports(searcher, llm, reports).Fetch(context.Background(), Request{Entity: airbus})
	require.Error(t, err)
	assert.True(t, cache.IsWriteError(err))
}

func TestFormatCandidatesKeepsResultNumbering(t *testing.T) {
	results := []model.SearchResult{
		{URL: "https://a/x.pdf", Title: "A", Description: "first"},
		{URL: "https://b/y.pdf", Title: "B", Description: "second"},
	}
	checks := []linkcheck.Check{{URL: "https://a/x.pdf"}, {URL: "https://b/y.pdf", Valid: true}}

	assert.Equal(t, "\n\n1. [B](https://b/y.pdf)\nsecond", formatCandidates(results, checks))
	assert.Empty(t, formatCandidates(results[:1], checks[:1]))
}
