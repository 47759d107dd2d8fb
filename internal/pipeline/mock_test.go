package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/extract"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/sources"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// --- Source fetcher mock ---

type mockFetcher struct {
	mock.Mock
	name string
}

func (m *mockFetcher) Name() string { return m.name }

func (m *mockFetcher) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sources.Result), args.Error(1)
}

// --- Extractor mock ---

type mockExtractor struct {
	mock.Mock
	name string
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) Extract(ctx context.Context, e model.Entity) (*extract.Extraction, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extract.Extraction), args.Error(1)
}

// --- Classifier mock ---

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, text string, topK int) (string, error) {
	args := m.Called(ctx, text, topK)
	return args.String(0), args.Error(1)
}
