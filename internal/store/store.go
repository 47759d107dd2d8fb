// Package store persists enrichment runs and their per-entity results.
package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/db"
	"github.com/sells-group/mne-enrich/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, entities int) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveResult(ctx context.Context, runID string, result model.EntityResult) error
	ListResults(ctx context.Context, runID string) ([]model.EntityResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("run not found")

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures the store backend.
type Config struct {
	Driver string        `yaml:"driver" mapstructure:"driver"`
	DSN    string        `yaml:"dsn" mapstructure:"dsn"`
	Pool   db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open opens and migrates the configured store. An empty driver returns a
// nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "":
		return nil, nil
	case DriverSQLite:
		s, err = NewSQLite(cfg.DSN)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// factColumns are the columns of the facts table, in row order.
var factColumns = []string{"run_id", "entity_id", "entity_name", "variable", "source_url", "value", "currency", "year"}

func factRows(runID string, facts []model.Fact) [][]any {
	rows := make([][]any, len(facts))
	for i, f := range facts {
		rows[i] = []any{runID, f.EntityID, f.EntityName, string(f.Variable), f.SourceURL, factValue(f.Value), f.Currency, f.Year}
	}
	return rows
}

func factValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
