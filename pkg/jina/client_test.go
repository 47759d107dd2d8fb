package jina

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

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/SAP annual report filetype:pdf", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			Code: 200,
			Data: []SearchResult{{Title: "SAP Integrated Report", URL: "https://sap.com/ar.pdf", Description: "2024"}},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithSearchBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), "SAP annual report", WithFileType("pdf"))
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://sap.com/ar.pdf", resp.Data[0].URL)
}

func TestSearch_WithSiteFilter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sap.com", r.URL.Query().Get("site"))
		w.Write([]byte(`{"code":200,"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q", WithSiteFilter("sap.com"))
	require.NoError(t, err)
}

func TestSearch_NoResults422(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestSearch_RetryOn500(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"code":200,"data":[{"url":"https://a"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithSearchBaseURL(srv.URL), fastRetry()).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_HTTPErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient("k", WithSearchBaseURL(srv.URL), fastRetry()).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
}
