// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	google "github.com/sells-group/cafe-review-cli/pkg/google"
)

// MockClient is a testify mock of google.Client.
type MockClient struct {
	mock.Mock
}

var _ google.Client = (*MockClient)(nil)

// TextSearch records the call and replays the configured return values. The
// first return may be a *google.SearchResponse or a function computing one
// from the request.
func (m *MockClient) TextSearch(ctx context.Context, req google.SearchRequest) (*google.SearchResponse, error) {
	ret := m.Called(ctx, req)
	if len(ret) == 0 {
		panic("mocks: no return value specified for TextSearch")
	}

	if fn, ok := ret.Get(0).(func(context.Context, google.SearchRequest) (*google.SearchResponse, error)); ok {
		return fn(ctx, req)
	}
	resp, _ := ret.Get(0).(*google.SearchResponse)
	return resp, ret.Error(1)
}

// OnQuery expects a search whose text equals query.
func (m *MockClient) OnQuery(query string) *mock.Call {
	return m.On("TextSearch", mock.Anything, mock.MatchedBy(func(req google.SearchRequest) bool {
		return req.Query == query
	}))
}

// NewMockClient creates a mock that asserts its expectations at cleanup.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
