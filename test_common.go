package p2p

import (
	"context"
	"testing"
	"time"
)

const testLocalhost = "127.0.0.1"

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	t *testing.T
}

// Debugf logs debug messages with formatted output
func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.t.Logf("[DEBUG] "+format, args...)
}

// Infof logs info messages with formatted output
func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.t.Logf("[INFO] "+format, args...)
}

// Warnf logs warning messages with formatted output
func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.t.Logf("[WARN] "+format, args...)
}

// Errorf logs error messages with formatted output
func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.t.Logf("[ERROR] "+format, args...)
}

// Fatalf logs fatal messages with formatted output and terminates the test
func (m *MockLogger) Fatalf(format string, args ...interface{}) {
	m.t.Fatalf("[FATAL] "+format, args...)
}

// createTestContext creates a context with timeout for testing
func createTestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// createTestLogger creates a mock logger for testing
func createTestLogger(t *testing.T) *MockLogger {
	return &MockLogger{t: t}
}

// createBasicConfig creates a loopback-only engine configuration
func createBasicConfig(processName string) Config {
	return Config{
		ProcessName:     processName,
		ListenAddresses: []string{testLocalhost},
		Port:            0,
	}
}

// byteCodec passes game payloads through unchanged
func byteCodec() GameCodec[[]byte, []byte] {
	return GameCodec[[]byte, []byte]{
		Encode: func(b []byte) ([]byte, error) { return b, nil },
		Decode: func(b []byte) ([]byte, error) { return b, nil },
	}
}

// setupManagerCleanup sends Quit and waits for the engine to exit
func setupManagerCleanup(ctx context.Context, t testing.TB, manager *NetworkManager[[]byte, []byte]) {
	t.Helper()

	t.Cleanup(func() {
		if err := manager.SendToNetwork(ctx, AdminEvent[[]byte](QuitCommand())); err != nil {
			return // already stopped
		}

		select {
		case <-manager.Done():
		case <-time.After(10 * time.Second):
			t.Logf("engine did not stop within cleanup timeout")
		}
	})
}
