package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

// createTestProvider creates an instrumentation provider for testing.
func createTestProvider(t *testing.T) *instrumentation.Provider {
	t.Helper()

	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled:         true,
		ServiceName:     "kubewire-test",
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewProbeServerDefaultAddr(t *testing.T) {
	s := NewProbeServer(ProbeServerConfig{Logger: logging.Discard()})
	assert.Equal(t, DefaultProbeAddr, s.Addr())

	s = NewProbeServer(ProbeServerConfig{Addr: "127.0.0.1:0", Logger: logging.Discard()})
	assert.Equal(t, "127.0.0.1:0", s.Addr())
}

func TestProbeServerRoutes(t *testing.T) {
	tests := []struct {
		name       string
		provider   bool
		method     string
		path       string
		wantStatus int
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "metrics with prometheus", provider: true, method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "metrics without provider", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusNotFound},
		{name: "post rejected", method: http.MethodPost, path: "/healthz", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProbeServerConfig{Logger: logging.Discard()}
			if tt.provider {
				cfg.InstrumentationProvider = createTestProvider(t)
			}
			s := NewProbeServer(cfg)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestProbeServerExposesClientMetrics(t *testing.T) {
	provider := createTestProvider(t)
	provider.Metrics().RecordRequest(context.Background(), http.MethodGet, "pods", "team-a", 200, 10*time.Millisecond)

	s := NewProbeServer(ProbeServerConfig{InstrumentationProvider: provider, Logger: logging.Discard()})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kubewire_requests_total")
}

func TestProbeServerRunAndShutdown(t *testing.T) {
	s := NewProbeServer(ProbeServerConfig{Addr: "127.0.0.1:0", Version: "test", Logger: logging.Discard()})
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	url := fmt.Sprintf("http://%s/healthz", s.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for server to stop")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "readiness fails once stopping")
}

func TestProbeServerShutdownWithoutStart(t *testing.T) {
	s := NewProbeServer(ProbeServerConfig{Addr: "127.0.0.1:0", Logger: logging.Discard()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
