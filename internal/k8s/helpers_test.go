package k8s

import (
	"bytes"
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

const (
	testToken     = "test-token-abc123"
	testNamespace = "team-a"
)

// MockLogger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...interface{}) {
	m.Called(msg, args)
}

// quietMockLogger accepts any Debug/Info call; tests add Warn/Error
// expectations on top.
func quietMockLogger() *MockLogger {
	l := &MockLogger{}
	l.On("Debug", mock.Anything, mock.Anything).Maybe()
	l.On("Info", mock.Anything, mock.Anything).Maybe()
	return l
}

// syncBuffer is a bytes.Buffer safe for the stream goroutines to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeAPIServer is a TLS test server plus a CA bundle trusting it.
type fakeAPIServer struct {
	*httptest.Server
	caFile string
}

func newFakeAPIServer(t *testing.T, handler http.Handler) *fakeAPIServer {
	t.Helper()

	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	return &fakeAPIServer{Server: srv, caFile: writeCAFile(t, srv)}
}

func writeCAFile(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	path := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(path, certPEM, 0o600))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newTestClient returns a client pointed at srv with explicit credentials.
func newTestClient(t *testing.T, srv *fakeAPIServer, mutate ...func(*ClientConfig)) *Client {
	t.Helper()

	cfg := &ClientConfig{
		Host:       srv.URL,
		Token:      testToken,
		Namespace:  testNamespace,
		CACertFile: srv.caFile,
	}
	for _, m := range mutate {
		m(cfg)
	}

	c, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func withLogBuffer(buf *syncBuffer) func(*ClientConfig) {
	return func(cfg *ClientConfig) {
		logger, err := logging.New(logging.FormatJSON, "debug", buf)
		if err != nil {
			panic(err)
		}
		cfg.Logger = logger
	}
}

// testMetrics wires a Metrics recorder to a manual reader.
func testMetrics(t *testing.T) (*instrumentation.Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := instrumentation.NewMetrics(provider.Meter("test"), false)
	require.NoError(t, err)
	return m, reader
}

// counterTotal sums every data point of the named int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
