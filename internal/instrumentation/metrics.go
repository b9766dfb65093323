package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrResource  = "resource"
	attrNamespace = "namespace"
	attrStatus    = "status"
	attrKind      = "kind"
	attrState     = "state"
	attrType      = "type"
)

// Metrics provides methods for recording request and stream metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Request metrics
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram

	// Stream metrics
	activeStreams     metric.Int64UpDownCounter
	streamsTotal      metric.Int64Counter
	watchEventsTotal  metric.Int64Counter
	linesSkippedTotal metric.Int64Counter

	// detailedLabels controls whether the namespace label is attached to
	// request metrics.
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"kubewire_requests_total",
		metric.WithDescription("Total number of Kubernetes API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_requests_total counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram(
		"kubewire_request_duration_seconds",
		metric.WithDescription("Kubernetes API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_request_duration_seconds histogram: %w", err)
	}

	m.activeStreams, err = meter.Int64UpDownCounter(
		"kubewire_active_streams",
		metric.WithDescription("Number of open watch and log streams"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_active_streams gauge: %w", err)
	}

	m.streamsTotal, err = meter.Int64Counter(
		"kubewire_streams_total",
		metric.WithDescription("Total number of finished streams by final state"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_streams_total counter: %w", err)
	}

	m.watchEventsTotal, err = meter.Int64Counter(
		"kubewire_watch_events_total",
		metric.WithDescription("Total number of watch events delivered"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_watch_events_total counter: %w", err)
	}

	m.linesSkippedTotal, err = meter.Int64Counter(
		"kubewire_stream_lines_skipped_total",
		metric.WithDescription("Total number of malformed stream lines skipped"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubewire_stream_lines_skipped_total counter: %w", err)
	}

	return m, nil
}

// RecordRequest records one API request. A statusCode of 0 means the request
// failed before a response arrived and is recorded with status "error".
//
// The namespace label is only attached when detailed labels are enabled.
func (m *Metrics) RecordRequest(ctx context.Context, method, resource, namespace string, statusCode int, duration time.Duration) {
	if m == nil || m.requestsTotal == nil || m.requestDuration == nil {
		return
	}

	status := StatusError
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrResource, resource),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrNamespace, namespace))
	}

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// StreamOpened marks a stream of the given kind as active.
func (m *Metrics) StreamOpened(ctx context.Context, kind string) {
	if m == nil || m.activeStreams == nil {
		return
	}

	m.activeStreams.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// StreamClosed marks a stream as finished in the given final state.
func (m *Metrics) StreamClosed(ctx context.Context, kind, state string) {
	if m == nil || m.activeStreams == nil || m.streamsTotal == nil {
		return
	}

	m.activeStreams.Add(ctx, -1, metric.WithAttributes(attribute.String(attrKind, kind)))
	m.streamsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrState, state),
	))
}

// RecordWatchEvent counts a delivered watch event by type.
func (m *Metrics) RecordWatchEvent(ctx context.Context, eventType string) {
	if m == nil || m.watchEventsTotal == nil {
		return
	}

	m.watchEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrType, eventType)))
}

// RecordSkippedLine counts a stream line that could not be decoded.
func (m *Metrics) RecordSkippedLine(ctx context.Context, kind string) {
	if m == nil || m.linesSkippedTotal == nil {
		return
	}

	m.linesSkippedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
