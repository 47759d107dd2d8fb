package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/resilience"
)

// Payload keys follow the LangChain layout so collections built by other
// tooling remain searchable.
const (
	payloadContentKey  = "page_content"
	payloadMetadataKey = "metadata"
	metadataCodeKey    = "CODE"
	maxErrorBodyBytes  = 1024
)

var pointIDNamespace = uuid.MustParse("6f3c2a4e-1d9b-4c57-9a0e-3b8f5d72c4a1")

// QdrantConfig configures the Qdrant REST backend.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Qdrant is a Store backed by the Qdrant REST API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
	retry      resilience.RetryConfig
}

// NewQdrant creates a Qdrant store.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, eris.New("vectorstore: qdrant url is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: cfg.Timeout},
		retry:      resilience.DefaultRetryConfig(),
	}, nil
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Ensure creates the collection with cosine distance when it does not exist.
func (q *Qdrant) Ensure(ctx context.Context, dim int) error {
	status, err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	req := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	if _, err := q.do(ctx, http.MethodPut, q.collectionPath(""), req, nil); err != nil {
		return eris.Wrapf(err, "vectorstore: create collection %s", q.collection)
	}
	return nil
}

// Upsert writes one point per document; point ids derive from the code so
// re-ingestion overwrites.
func (q *Qdrant) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if err := checkBatch(docs, vectors); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	points := make([]map[string]any, len(docs))
	for i, d := range docs {
		points[i] = map[string]any{
			"id":     q.pointID(d.Code),
			"vector": vectors[i],
			"payload": map[string]any{
				payloadContentKey:  d.Text,
				payloadMetadataKey: map[string]any{metadataCodeKey: d.Code},
			},
		}
	}
	_, err := q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

// Search returns the k nearest points. Hits without a code are skipped.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, eris.New("vectorstore: query vector required")
	}
	if k <= 0 {
		k = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	var hits []qdrantHit
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), req, &hits); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		doc := payloadDocument(h.Payload)
		if doc.Code == "" {
			continue
		}
		out = append(out, Match{Document: doc, Score: h.Score})
	}
	return out, nil
}

func payloadDocument(p map[string]any) Document {
	var d Document
	d.Text, _ = p[payloadContentKey].(string)
	if meta, ok := p[payloadMetadataKey].(map[string]any); ok {
		d.Code, _ = meta[metadataCodeKey].(string)
	}
	return d
}

// do sends a JSON request and decodes the envelope's result into out. The
// returned status is set whenever a response was received.
func (q *Qdrant) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return 0, eris.Wrap(err, "vectorstore: encode qdrant request")
		}
	}

	retry := q.retry
	retry.OnRetry = resilience.RetryLogger("qdrant", strings.ToLower(method))

	var status int
	raw, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
		if err != nil {
			return nil, eris.Wrap(err, "vectorstore: build qdrant request")
		}
		req.Header.Set("Content-Type", "application/json")
		if q.apiKey != "" {
			req.Header.Set("api-key", q.apiKey)
		}

		resp, err := q.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "vectorstore: qdrant request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		status = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "vectorstore: read qdrant response")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.StatusError("qdrant", resp.StatusCode, req.URL.String())
			}
			return nil, eris.Errorf("vectorstore: qdrant status %d: %s", resp.StatusCode, truncateBody(data))
		}
		return data, nil
	})
	if err != nil {
		return status, err
	}

	var env qdrantEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return status, eris.Wrap(err, "vectorstore: decode qdrant envelope")
	}
	if msg := envelopeError(env.Status); msg != "" {
		return status, eris.Errorf("vectorstore: qdrant: %s", msg)
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return status, nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return status, eris.Wrap(err, "vectorstore: decode qdrant result")
	}
	return status, nil
}

// envelopeError extracts the failure message from a status that is either
// the string "ok" or an object with an error field.
func envelopeError(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if strings.EqualFold(str, "ok") || strings.EqualFold(str, "acknowledged") {
			return ""
		}
		return str
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	return s
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (q *Qdrant) pointID(code string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(q.collection+"|"+code)).String()
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + q.collection + suffix
}
