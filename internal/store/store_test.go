package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mne-enrich/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id int, name string) model.EntityResult {
	e := model.Entity{ID: id, Name: name}
	turnover := model.NewFact(e, model.VarTurnover, "https://finance.yahoo.com/quote/SAP/financials", int64(34176000000), model.Ptr(2024))
	turnover.Currency = "EUR"
	return model.EntityResult{
		Entity: e,
		Report: &model.AnnualReport{EntityID: id, EntityName: name, PDFURL: model.Ptr("https://sap.com/ar.pdf"), Year: model.Ptr(2024)},
		Citations: []model.Citation{
			{EntityID: id, EntityName: name, SourceName: "Wikipedia", URL: "https://en.wikipedia.org/wiki/SAP", Year: 2024},
		},
		Facts: []model.Fact{
			model.NewFact(e, model.VarCountry, "https://en.wikipedia.org/wiki/SAP", "DE", model.Ptr(2024)),
			turnover,
			model.NewFact(e, model.VarEmployees, "https://finance.yahoo.com/quote/SAP/profile", int64(107602), model.Ptr(2024)),
		},
	}
}

func TestOpen_NoDriver(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "s3://mne/entities.csv", 12)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "s3://mne/entities.csv", got.Source)
	assert.Equal(t, 12, got.Entities)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Empty(t, got.Error)
}

func TestSQLite_GetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_FinishRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "entities.csv", 1)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, run.ID, model.RunStatusFailed, errors.New("cache: write reports.json")))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "cache: write reports.json", got.Error)
}

func TestSQLite_FinishRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	err := s.FinishRun(context.Background(), "nope", model.RunStatusComplete, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "a.csv", 1)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "b.csv", 2)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, a.ID, model.RunStatusComplete, nil))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveAndListResults(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "entities.csv", 2)
	require.NoError(t, err)

	require.NoError(t, s.SaveResult(ctx, run.ID, sampleResult(2, "SIEMENS AG")))
	require.NoError(t, s.SaveResult(ctx, run.ID, sampleResult(1, "SAP SE")))

	results, err := s.ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "SAP SE", results[0].Entity.Name)
	assert.Equal(t, "SIEMENS AG", results[1].Entity.Name)
	require.Len(t, results[0].Facts, 3)
	assert.Equal(t, "EUR", results[0].Facts[1].Currency)
	assert.Equal(t, 2024, *results[0].Report.Year)
}

func TestSQLite_SaveResultReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "entities.csv", 1)
	require.NoError(t, err)

	first := sampleResult(1, "SAP SE")
	require.NoError(t, s.SaveResult(ctx, run.ID, first))

	second := first
	second.Facts = first.Facts[:1]
	require.NoError(t, s.SaveResult(ctx, run.ID, second))

	results, err := s.ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Facts, 1)

	var n int
	require.NoError(t, s.(*SQLiteStore).db.QueryRow(`SELECT COUNT(*) FROM facts WHERE run_id = ?`, run.ID).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLite_SaveResultUnknownRun(t *testing.T) {
	s := newTestSQLite(t)
	err := s.SaveResult(context.Background(), "ghost", sampleResult(1, "SAP SE"))
	require.Error(t, err)
}

func TestFactValue(t *testing.T) {
	assert.Equal(t, "", factValue(nil))
	assert.Equal(t, "DE", factValue("DE"))
	assert.Equal(t, "107602", factValue(int64(107602)))
	assert.Equal(t, "1.5", factValue(1.5))
	assert.Equal(t, "7", factValue(7))
}

func TestErrText(t *testing.T) {
	assert.Equal(t, "", errText(nil))
	assert.Equal(t, "boom", errText(errors.New("boom")))
}
