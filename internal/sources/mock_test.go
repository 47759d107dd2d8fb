package sources

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/pkg/anthropic"
	"github.com/sells-group/mne-enrich/pkg/wikipedia"
	"github.com/sells-group/mne-enrich/pkg/yahoo"
)

// --- Anthropic Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func toolResponse(name string, input any) *anthropic.MessageResponse {
	raw, _ := json.Marshal(input)
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "tool_use", Name: name, Input: raw}},
	}
}

// --- Search Stub ---

type stubProvider struct {
	results []model.SearchResult
	queries []string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(_ context.Context, query string) []model.SearchResult {
	s.queries = append(s.queries, query)
	return s.results
}

// --- Wikipedia Mock ---

type mockWikipedia struct {
	mock.Mock
}

func (m *mockWikipedia) Search(ctx context.Context, query string) ([]string, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockWikipedia) Page(ctx context.Context, title string) (*wikipedia.Page, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wikipedia.Page), args.Error(1)
}

func (m *mockWikipedia) Entity(ctx context.Context, qid string) (*wikipedia.Entity, error) {
	args := m.Called(ctx, qid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wikipedia.Entity), args.Error(1)
}

// --- Yahoo Mock ---

type mockYahoo struct {
	mock.Mock
}

func (m *mockYahoo) SearchQuotes(ctx context.Context, query string, count int) ([]yahoo.Quote, error) {
	args := m.Called(ctx, query, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]yahoo.Quote), args.Error(1)
}

func (m *mockYahoo) Profile(ctx context.Context, symbol string) (*yahoo.Profile, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*yahoo.Profile), args.Error(1)
}

func (m *mockYahoo) Financials(ctx context.Context, symbol string) (*yahoo.Financials, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*yahoo.Financials), args.Error(1)
}
