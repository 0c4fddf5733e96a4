package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
//
// Tests set expectations on the message only, e.g.
//
//	l.On("Warn", "timeout waiting for ACK", mock.Anything).Return()
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAll accepts any message at every level, so a test only asserts the
// calls it cares about with AssertCalled.
func (m *MockLogger) AllowAll() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(method, mock.Anything, mock.Anything).Maybe().Return()
	}

	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

// With returns the mock itself so expectations keep applying to child loggers.
func (m *MockLogger) With(keyValues ...any) Logger {
	return m
}
