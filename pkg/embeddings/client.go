// Package embeddings provides a client for OpenAI-compatible text embedding APIs.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/resilience"
)

// DefaultModel is the instruction-tuned embedding model the NACE collection is built with.
const DefaultModel = "Alibaba-NLP/gte-Qwen2-7B-instruct"

// Client embeds text into dense vectors.
type Client interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the embeddings client.
type Option func(*httpClient)

// WithBaseURL sets the API base URL (e.g. "https://api.deepinfra.com/v1/openai").
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithBatchSize caps how many inputs are sent per request.
func WithBatchSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	model     string
	batchSize int
	http      *http.Client
	retry     resilience.RetryConfig
}

// NewClient creates a new embeddings client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   "https://api.deepinfra.com/v1/openai",
		model:     DefaultModel,
		batchSize: 32,
		http:      &http.Client{Timeout: 60 * time.Second},
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *httpClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *httpClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: c.model, Input: batch, EncodingFormat: "float"})
	if err != nil {
		return nil, eris.Wrap(err, "embeddings: marshal request")
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("embeddings", "embed")

	reqURL := c.baseURL + "/embeddings"
	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "embeddings: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "embeddings: request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "embeddings: read response body")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, resilience.StatusError("embeddings", resp.StatusCode, reqURL)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var result embedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "embeddings: unmarshal response")
	}
	if len(result.Data) != len(batch) {
		return nil, eris.Errorf("embeddings: got %d vectors for %d inputs", len(result.Data), len(batch))
	}

	sort.SliceStable(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})
	vecs := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
