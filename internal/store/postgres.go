package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/db"
	"github.com/sells-group/mne-enrich/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, dsn string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, dsn, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	entities   INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	entity_id   INTEGER NOT NULL,
	entity_name TEXT NOT NULL,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, entity_id, entity_name)
);

CREATE TABLE IF NOT EXISTS facts (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	entity_id   INTEGER NOT NULL,
	entity_name TEXT NOT NULL,
	variable    TEXT NOT NULL,
	source_url  TEXT NOT NULL,
	value       TEXT NOT NULL,
	currency    TEXT NOT NULL,
	year        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_facts_run_entity ON facts(run_id, entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, entities int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, entities, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, source, string(model.RunStatusRunning), entities, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		Entities:  entities,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errText(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: finish run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, status, entities, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Source, &status, &r.Entities, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, status, entities, error, created_at, updated_at FROM runs
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(filter.Status), limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.Entities, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveResult stores an entity's result and replaces its facts in one
// transaction; facts are bulk-loaded with COPY.
func (s *PostgresStore) SaveResult(ctx context.Context, runID string, result model.EntityResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO entity_results (run_id, entity_id, entity_name, result, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, entity_id, entity_name) DO UPDATE SET result = EXCLUDED.result`,
		runID, result.Entity.ID, result.Entity.Name, resultJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result for run %s", runID)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM facts WHERE run_id = $1 AND entity_id = $2 AND entity_name = $3`,
		runID, result.Entity.ID, result.Entity.Name,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: clear facts")
	}

	if _, err := db.CopyFrom(ctx, tx, "facts", factColumns, factRows(runID, result.Facts)); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit result")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]model.EntityResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM entity_results WHERE run_id = $1 ORDER BY entity_id, entity_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.EntityResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var r model.EntityResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}
