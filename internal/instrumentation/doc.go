// Package instrumentation provides OpenTelemetry metrics and tracing for the
// kubewire client.
//
// # Metrics
//
// Request metrics:
//   - kubewire_requests_total: Counter of API requests by method, resource and status
//   - kubewire_request_duration_seconds: Histogram of API request durations
//
// Stream metrics:
//   - kubewire_active_streams: Gauge of open watch and log streams by kind
//   - kubewire_streams_total: Counter of finished streams by kind and final state
//   - kubewire_watch_events_total: Counter of delivered watch events by type
//   - kubewire_stream_lines_skipped_total: Counter of malformed stream lines by kind
//
// The namespace label is only attached to request metrics when
// DetailedLabels is set. Clusters with many namespaces should leave it off
// and use traces for per-namespace debugging.
//
// # Tracing
//
// Every API call runs in a client span named "k8s.<operation>" carrying the
// resource type, namespace and response status code.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: prometheus, otlp, stdout or none (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: kubewire)
//   - METRICS_DETAILED_LABELS: Add the namespace label to request metrics
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	client, err := k8s.NewClient(&k8s.ClientConfig{Metrics: provider.Metrics()})
package instrumentation
