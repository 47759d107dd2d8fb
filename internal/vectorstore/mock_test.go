package vectorstore

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Ensure(ctx context.Context, dim int) error {
	return m.Called(ctx, dim).Error(0)
}

func (m *mockStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	return m.Called(ctx, docs, vectors).Error(0)
}

func (m *mockStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Match), args.Error(1)
}
