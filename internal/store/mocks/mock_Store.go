// Package mocks provides test doubles for the store package.
package mocks

import (
	"context"

	model "github.com/sells-group/mne-enrich/internal/model"
	store "github.com/sells-group/mne-enrich/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, source, entities
func (_m *MockStore) CreateRun(ctx context.Context, source string, entities int) (*model.Run, error) {
	ret := _m.Called(ctx, source, entities)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// FinishRun provides a mock function with given fields: ctx, runID, status, runErr
func (_m *MockStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, runErr error) error {
	ret := _m.Called(ctx, runID, status, runErr)

	if len(ret) == 0 {
		panic("no return value specified for FinishRun")
	}
	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	return r0, ret.Error(1)
}

// SaveResult provides a mock function with given fields: ctx, runID, result
func (_m *MockStore) SaveResult(ctx context.Context, runID string, result model.EntityResult) error {
	ret := _m.Called(ctx, runID, result)

	if len(ret) == 0 {
		panic("no return value specified for SaveResult")
	}
	return ret.Error(0)
}

// ListResults provides a mock function with given fields: ctx, runID
func (_m *MockStore) ListResults(ctx context.Context, runID string) ([]model.EntityResult, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for ListResults")
	}

	var r0 []model.EntityResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.EntityResult)
	}
	return r0, ret.Error(1)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
