// Package mocks provides test doubles for the whisper client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// NewMockClient creates a new MockClient and registers cleanup assertions.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Transcribe provides a mock function with given fields: ctx, audio, filename
func (_m *MockClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ret := _m.Called(ctx, audio, filename)

	if len(ret) == 0 {
		panic("no return value specified for Transcribe")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []byte, string) (string, error)); ok {
		return rf(ctx, audio, filename)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []byte, string) string); ok {
		r0 = rf(ctx, audio, filename)
	} else {
		r0 = ret.String(0)
	}

	if rf, ok := ret.Get(1).(func(context.Context, []byte, string) error); ok {
		r1 = rf(ctx, audio, filename)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
