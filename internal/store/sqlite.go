package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mne-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	entities   INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entity_results (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	entity_id   INTEGER NOT NULL,
	entity_name TEXT NOT NULL,
	result      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string, entities int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, entities, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), entities, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errText(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, entities, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, entities, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveResult stores an entity's result and replaces its facts.
func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, result model.EntityResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entity_results (run_id, entity_id, entity_name, result, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, entity_id, entity_name) DO UPDATE SET result = excluded.result`,
		runID, result.Entity.ID, result.Entity.Name, string(resultJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save result for run %s", runID)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM facts WHERE run_id = ? AND entity_id = ? AND entity_name = ?`,
		runID, result.Entity.ID, result.Entity.Name,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: clear facts")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facts (run_id, entity_id, entity_name, variable, source_url, value, currency, year) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare facts")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range factRows(runID, result.Facts) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrap(err, "sqlite: insert fact")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit result")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]model.EntityResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM entity_results WHERE run_id = ? ORDER BY entity_id, entity_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EntityResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.EntityResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Source, &r.Status, &r.Entities, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}
