package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/db"
)

// RegisterVectorTypes is a db.AfterConnectFunc that installs the pgvector
// extension and registers its types on the connection.
func RegisterVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return eris.Wrap(err, "vectorstore: create vector extension")
	}
	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		return eris.Wrap(err, "vectorstore: register vector types")
	}
	return nil
}

// PGVector is a Store backed by a Postgres table with a pgvector column.
type PGVector struct {
	pool  db.Pool
	table string
}

// NewPGVector creates a pgvector store. The collection name doubles as the
// table name, with dashes mapped to underscores.
func NewPGVector(pool db.Pool, collection string) *PGVector {
	if collection == "" {
		collection = DefaultCollection
	}
	return &PGVector{pool: pool, table: strings.ReplaceAll(collection, "-", "_")}
}

// Ensure creates the documents table.
func (p *PGVector) Ensure(ctx context.Context, dim int) error {
	if dim <= 0 {
		return eris.Errorf("vectorstore: invalid vector dimension %d", dim)
	}
	// Sequential scan only; one row per NACE division.
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	code       TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	embedding  vector(%d) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, pgx.Identifier{p.table}.Sanitize(), dim)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return eris.Wrapf(err, "vectorstore: migrate %s", p.table)
	}
	return nil
}

// Upsert writes documents keyed by code.
func (p *PGVector) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if err := checkBatch(docs, vectors); err != nil {
		return err
	}
	rows := make([][]any, len(docs))
	for i, d := range docs {
		rows[i] = []any{d.Code, d.Text, pgvector.NewVector(vectors[i])}
	}
	_, err := db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        p.table,
		Columns:      []string{"code", "content", "embedding"},
		ConflictKeys: []string{"code"},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "vectorstore: upsert documents")
	}
	return nil
}

// Search returns the k documents with the smallest cosine distance.
func (p *PGVector) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, eris.New("vectorstore: query vector required")
	}
	if k <= 0 {
		k = 10
	}
	query := fmt.Sprintf(
		`SELECT code, content, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 LIMIT $2`,
		pgx.Identifier{p.table}.Sanitize(),
	)
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: search")
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Code, &m.Text, &m.Score); err != nil {
			return nil, eris.Wrap(err, "vectorstore: scan match")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "vectorstore: iterate matches")
	}
	return out, nil
}
