// Package mocks provides test doubles for the vpic client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	vpic "github.com/shopdesk/workorder-cli/pkg/vpic"
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

// DecodeVIN provides a mock function with given fields: ctx, vin
func (_m *MockClient) DecodeVIN(ctx context.Context, vin string) (*vpic.VehicleAttributes, error) {
	ret := _m.Called(ctx, vin)

	if len(ret) == 0 {
		panic("no return value specified for DecodeVIN")
	}

	var r0 *vpic.VehicleAttributes
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*vpic.VehicleAttributes, error)); ok {
		return rf(ctx, vin)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *vpic.VehicleAttributes); ok {
		r0 = rf(ctx, vin)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*vpic.VehicleAttributes)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, vin)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
