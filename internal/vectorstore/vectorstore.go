// Package vectorstore holds the NACE document collection: an embedder in front
// of a similarity-search backend (Qdrant or Postgres with pgvector).
package vectorstore

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/pkg/embeddings"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "challenge-mne"

// Document is one searchable text with the NACE code it describes.
type Document struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Match is a document returned by a similarity search.
type Match struct {
	Document
	Score float64 `json:"score"`
}

// Store persists vectors and answers nearest-neighbour queries.
type Store interface {
	// Ensure creates the collection for vectors of the given size if absent.
	Ensure(ctx context.Context, dim int) error
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
}

// Searcher answers text similarity queries.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Match, error)
}

// Index embeds text and delegates to a Store.
type Index struct {
	embedder embeddings.Client
	store    Store
}

// NewIndex creates an Index.
func NewIndex(embedder embeddings.Client, store Store) *Index {
	return &Index{embedder: embedder, store: store}
}

// Search embeds query and returns the k nearest documents, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, eris.Wrap(err, "vectorstore: embed query")
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("vectorstore: expected 1 query vector, got %d", len(vecs))
	}
	return ix.store.Search(ctx, vecs[0], k)
}

// Add embeds docs and upserts them, creating the collection on first use.
func (ix *Index) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return eris.Wrap(err, "vectorstore: embed documents")
	}
	if len(vecs) != len(docs) {
		return eris.Errorf("vectorstore: got %d vectors for %d documents", len(vecs), len(docs))
	}
	if err := ix.store.Ensure(ctx, len(vecs[0])); err != nil {
		return err
	}
	if err := ix.store.Upsert(ctx, docs, vecs); err != nil {
		return err
	}
	zap.L().Info("vectorstore: documents indexed", zap.Int("count", len(docs)), zap.Int("dim", len(vecs[0])))
	return nil
}

func checkBatch(docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return eris.Errorf("vectorstore: %d documents but %d vectors", len(docs), len(vectors))
	}
	for i, d := range docs {
		if d.Code == "" {
			return eris.Errorf("vectorstore: document %d has no code", i)
		}
		if len(vectors[i]) == 0 {
			return eris.Errorf("vectorstore: document %q has an empty vector", d.Code)
		}
	}
	return nil
}
