// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Model() config.ModelConfig {
	args := m.Called()
	return args.Get(0).(config.ModelConfig)
}

func (m *MockConfig) ImageHost() config.ImageHostConfig {
	args := m.Called()
	return args.Get(0).(config.ImageHostConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

// --- Setters ---

func (m *MockConfig) SetServerAddr(addr string) {
	m.Called(addr)
}

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

// -- Vision Model Mock --

// MockVisionModel mocks the schemas.VisionModel interface.
type MockVisionModel struct {
	mock.Mock
}

func (m *MockVisionModel) Invoke(ctx context.Context, req schemas.InvocationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockVisionModel) Close() error {
	return m.Called().Error(0)
}

// -- Image Host Mock --

// MockImageHost mocks the schemas.ImageHost interface.
type MockImageHost struct {
	mock.Mock
}

func (m *MockImageHost) Put(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

// -- Decider Mock --

// MockDecider mocks the schemas.Decider interface.
type MockDecider struct {
	mock.Mock
}

func (m *MockDecider) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.DecisionResult), args.Error(1)
}

// -- Page Capturer Mock --

// MockPageCapturer mocks the schemas.PageCapturer interface.
type MockPageCapturer struct {
	mock.Mock
}

func (m *MockPageCapturer) Capture(ctx context.Context, url string) (*schemas.PageSnapshot, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageSnapshot), args.Error(1)
}

func (m *MockPageCapturer) Close() error {
	return m.Called().Error(0)
}
