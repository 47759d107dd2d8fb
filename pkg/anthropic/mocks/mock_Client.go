// Package mocks provides test doubles for the anthropic client.
package mocks

import (
	"context"
	"encoding/json"

	anthropic "github.com/sells-group/mne-enrich/pkg/anthropic"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// CreateMessage provides a mock function with given fields: ctx, req
func (_m *MockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for CreateMessage")
	}

	var r0 *anthropic.MessageResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*anthropic.MessageResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ToolUse builds a response whose only block is a call to tool with input.
func ToolUse(tool string, input any) *anthropic.MessageResponse {
	raw, err := json.Marshal(input)
	if err != nil {
		panic(err)
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "tool_use", Name: tool, Input: raw}},
	}
}

// NewMockClient creates a new instance of MockClient and registers cleanup
// assertions on t.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
