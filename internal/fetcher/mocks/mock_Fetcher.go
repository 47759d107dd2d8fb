// Package mocks provides test doubles for the fetcher package.
package mocks

import (
	"context"
	"io"

	fetcher "github.com/sells-group/mne-enrich/internal/fetcher"
	mock "github.com/stretchr/testify/mock"
)

// MockFetcher is a mock type for the Fetcher interface. Request options are
// passed to Called as a single slice argument.
type MockFetcher struct {
	mock.Mock
}

// Download provides a mock function with given fields: ctx, url, opts
func (_m *MockFetcher) Download(ctx context.Context, url string, opts ...fetcher.RequestOption) (io.ReadCloser, error) {
	ret := _m.Called(ctx, url, opts)

	if len(ret) == 0 {
		panic("no return value specified for Download")
	}

	var r0 io.ReadCloser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(io.ReadCloser)
	}
	return r0, ret.Error(1)
}

// GetJSON provides a mock function with given fields: ctx, url, out, opts
func (_m *MockFetcher) GetJSON(ctx context.Context, url string, out any, opts ...fetcher.RequestOption) error {
	ret := _m.Called(ctx, url, out, opts)

	if len(ret) == 0 {
		panic("no return value specified for GetJSON")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, any, []fetcher.RequestOption) error); ok {
		return rf(ctx, url, out, opts)
	}
	return ret.Error(0)
}

// Probe provides a mock function with given fields: ctx, method, url, opts
func (_m *MockFetcher) Probe(ctx context.Context, method string, url string, opts ...fetcher.RequestOption) (*fetcher.ProbeResult, error) {
	ret := _m.Called(ctx, method, url, opts)

	if len(ret) == 0 {
		panic("no return value specified for Probe")
	}

	var r0 *fetcher.ProbeResult
	if rf, ok := ret.Get(0).(func(context.Context, string, string, []fetcher.RequestOption) (*fetcher.ProbeResult, error)); ok {
		return rf(ctx, method, url, opts)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*fetcher.ProbeResult)
	}
	return r0, ret.Error(1)
}

// NewMockFetcher creates a new instance of MockFetcher and registers cleanup
// assertions on t.
func NewMockFetcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockFetcher {
	m := &MockFetcher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
