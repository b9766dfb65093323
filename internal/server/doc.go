// Package server provides the probe HTTP server run by long-running kubewire
// commands.
//
// The server exposes:
//
//   - /healthz: liveness, always 200 while the process responds
//   - /readyz: readiness, 503 while starting, stopping or when the API
//     server cannot be reached
//   - /metrics: Prometheus metrics when the instrumentation provider uses
//     the prometheus exporter
//
// Example usage:
//
//	probe := server.NewProbeServer(server.ProbeServerConfig{
//		Addr:      ":9090",
//		Version:   version,
//		Readiness: func(ctx context.Context) error { return k8s.Ping(ctx, client) },
//		InstrumentationProvider: provider,
//	})
//	go func() { _ = probe.Run(ctx) }()
package server
