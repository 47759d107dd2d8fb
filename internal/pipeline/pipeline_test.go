package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/extract"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/sources"
)

var sap = model.Entity{ID: 1, Name: "SAP SE"}

func fact(v model.Variable, value any, year *int) model.Fact {
	return model.NewFact(sap, v, "https://example.com/"+string(v), value, year)
}

func wikiExtraction() *extract.Extraction {
	return &extract.Extraction{
		Facts: []model.Fact{
			fact(model.VarCountry, "DE", model.Ptr(2024)),
			fact(model.VarEmployees, int64(100000), model.Ptr(2022)),
			fact(model.VarActivity, "Enterprise software", model.Ptr(2024)),
		},
		Citations: []model.Citation{{EntityID: 1, EntityName: "SAP SE", SourceName: "Wikipedia", URL: "https://en.wikipedia.org/wiki/SAP", Year: 2024}},
	}
}

func yahooExtraction() *extract.Extraction {
	return &extract.Extraction{
		Facts: []model.Fact{
			fact(model.VarEmployees, int64(107602), model.Ptr(2024)),
			fact(model.VarCountry, "US", model.Ptr(2024)),
			fact(model.VarTurnover, int64(34176000000), model.Ptr(2024)),
		},
		Citations: []model.Citation{{EntityID: 1, EntityName: "SAP SE", SourceName: "Yahoo", URL: "https://finance.yahoo.com/quote/SAP/profile", Year: 2024}},
	}
}

func newMocks() (*mockFetcher, *mockExtractor, *mockExtractor, *mockFetcher) {
	return &mockFetcher{name: "annual_report"},
		&mockExtractor{name: "wikipedia"},
		&mockExtractor{name: "yahoo"},
		&mockFetcher{name: "register"}
}

func TestProcess_MergesInPriorityOrder(t *testing.T) {
	reports, wiki, yahoo, register := newMocks()
	report := &model.AnnualReport{EntityID: 1, EntityName: "SAP SE", PDFURL: model.Ptr("https://sap.com/ar.pdf"), Year: model.Ptr(2024)}

	reports.On("Fetch", mock.Anything, sources.Request{Entity: sap}).Return(&sources.Result{Report: report}, nil)
	wiki.On("Extract", mock.Anything, sap).Return(wikiExtraction(), nil)
	yahoo.On("Extract", mock.Anything, sap).Return(yahooExtraction(), nil)
	register.On("Fetch", mock.Anything, sources.Request{Entity: sap, Country: "DE"}).
		Return(nil, sources.ErrNoFetcher)

	p := New(reports, []extract.Extractor{wiki, yahoo}, WithRegister(register))
	res, err := p.Process(context.Background(), sap)
	require.NoError(t, err)

	assert.Equal(t, report, res.Report)
	require.Len(t, res.Facts, 4)
	// Equal years keep the earlier source; newer years replace.
	assert.Equal(t, "DE", res.Facts[0].Value)
	assert.Equal(t, int64(107602), res.Facts[1].Value)
	assert.Equal(t, "Enterprise software", res.Facts[2].Value)
	assert.Equal(t, model.VarTurnover, res.Facts[3].Variable)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "Wikipedia", res.Citations[0].SourceName)
	assert.Equal(t, "Yahoo", res.Citations[1].SourceName)

	reports.AssertExpectations(t)
	register.AssertExpectations(t)
}

func TestProcess_SourceFailuresDegrade(t *testing.T) {
	reports, wiki, yahoo, _ := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).Return(nil, errors.New("search down"))
	wiki.On("Extract", mock.Anything, sap).Return(nil, errors.New("wikidata timeout"))
	yahoo.On("Extract", mock.Anything, sap).Return(yahooExtraction(), nil)

	p := New(reports, []extract.Extractor{wiki, yahoo})
	res, err := p.Process(context.Background(), sap)
	require.NoError(t, err)

	assert.Nil(t, res.Report)
	require.Len(t, res.Facts, 3)
	assert.Equal(t, "US", res.Facts[1].Value)
}

func TestProcess_CacheWriteIsFatal(t *testing.T) {
	reports, wiki, yahoo, _ := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).
		Return(nil, &cache.WriteError{Path: "reports.json", Err: errors.New("read-only file system")})
	wiki.On("Extract", mock.Anything, sap).Return(nil, nil)
	yahoo.On("Extract", mock.Anything, sap).Return(nil, nil)

	_, err := New(reports, []extract.Extractor{wiki, yahoo}).Process(context.Background(), sap)
	require.Error(t, err)
	assert.True(t, cache.IsWriteError(err))
}

func TestProcess_RegisterCitations(t *testing.T) {
	reports, wiki, yahoo, register := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).Return(nil, nil)
	wiki.On("Extract", mock.Anything, sap).Return(&extract.Extraction{
		Facts: []model.Fact{fact(model.VarCountry, "FR", model.Ptr(2024))},
	}, nil)
	yahoo.On("Extract", mock.Anything, sap).Return(nil, nil)

	registerCitation := model.Citation{EntityID: 1, EntityName: "SAP SE", SourceName: sources.SourceAnnuaire, URL: "https://annuaire-entreprises.data.gouv.fr/entreprise/552032534", Year: 2024}
	register.On("Fetch", mock.Anything, sources.Request{Entity: sap, Country: "FR"}).
		Return(&sources.Result{Citations: []model.Citation{registerCitation}}, nil)

	res, err := New(reports, []extract.Extractor{wiki, yahoo}, WithRegister(register)).Process(context.Background(), sap)
	require.NoError(t, err)
	assert.Equal(t, []model.Citation{registerCitation}, res.Citations)
}

func TestProcess_NoCountrySkipsRegister(t *testing.T) {
	reports, wiki, yahoo, register := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).Return(nil, nil)
	wiki.On("Extract", mock.Anything, sap).Return(nil, nil)
	yahoo.On("Extract", mock.Anything, sap).Return(nil, nil)

	res, err := New(reports, []extract.Extractor{wiki, yahoo}, WithRegister(register)).Process(context.Background(), sap)
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
	register.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestProcess_ClassifiesActivity(t *testing.T) {
	reports, wiki, yahoo, _ := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).Return(nil, nil)
	wiki.On("Extract", mock.Anything, sap).Return(wikiExtraction(), nil)
	yahoo.On("Extract", mock.Anything, sap).Return(nil, nil)

	clf := &mockClassifier{}
	clf.On("Classify", mock.Anything, "Enterprise software", 10).Return("J62", nil)

	res, err := New(reports, []extract.Extractor{wiki, yahoo}, WithClassifier(clf, 10)).Process(context.Background(), sap)
	require.NoError(t, err)
	require.Len(t, res.Facts, 3)
	assert.Equal(t, "J62", res.Facts[2].Value)
	clf.AssertExpectations(t)
}

func TestProcess_ClassificationFailureDropsActivity(t *testing.T) {
	reports, wiki, yahoo, _ := newMocks()
	reports.On("Fetch", mock.Anything, mock.Anything).Return(nil, nil)
	wiki.On("Extract", mock.Anything, sap).Return(wikiExtraction(), nil)
	yahoo.On("Extract", mock.Anything, sap).Return(nil, nil)

	clf := &mockClassifier{}
	clf.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("llm unavailable"))

	res, err := New(reports, []extract.Extractor{wiki, yahoo}, WithClassifier(clf, 0)).Process(context.Background(), sap)
	require.NoError(t, err)
	require.Len(t, res.Facts, 2)
	for _, f := range res.Facts {
		assert.NotEqual(t, model.VarActivity, f.Variable)
	}
}

func TestTextFact(t *testing.T) {
	facts := []model.Fact{fact(model.VarEmployees, int64(5), model.Ptr(2024)), fact(model.VarCountry, "FR", model.Ptr(2024))}
	got, ok := textFact(facts, model.VarCountry)
	assert.True(t, ok)
	assert.Equal(t, "FR", got)

	_, ok = textFact(facts, model.VarEmployees)
	assert.False(t, ok)
	_, ok = textFact(facts, model.VarWebsite)
	assert.False(t, ok)
}
