package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mne-enrich/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})
}

func TestEmbed_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		// Out of order on purpose; the client sorts by index.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0.2,0.3]},{"index":0,"embedding":[0.1,0.0]}]}`))
	}))
	defer srv.Close()

	vecs, err := NewClient("key", WithBaseURL(srv.URL+"/")).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0}, vecs[0])
	assert.Equal(t, []float32{0.2, 0.3}, vecs[1])
}

func TestEmbed_Batches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(in))}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithBatchSize(2), WithModel("m"))
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
}

func TestEmbed_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 0 vectors for 1 inputs")
}

func TestEmbed_RetryOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vecs, err := NewClient("k", WithBaseURL(srv.URL), fastRetry()).Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}}, vecs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL), fastRetry()).Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_Empty(t *testing.T) {
	t.Parallel()

	vecs, err := NewClient("k", WithBaseURL("http://unused.invalid")).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
