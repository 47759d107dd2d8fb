package nace

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/vectorstore"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, k int) ([]vectorstore.Match, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.Match), args.Error(1)
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Add(ctx context.Context, docs []vectorstore.Document) error {
	return m.Called(ctx, docs).Error(0)
}
