package instrumentation

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a manual reader so tests can
// collect what was recorded.
func newTestMetrics(t *testing.T, detailedLabels bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"), detailedLabels)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, data metricdata.Aggregation, match func(attribute.Set) bool) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if match(dp.Attributes) {
			total += dp.Value
		}
	}
	return total
}

func hasAttr(key, value string) func(attribute.Set) bool {
	return func(s attribute.Set) bool {
		v, ok := s.Value(attribute.Key(key))
		return ok && v.AsString() == value
	}
}

func TestNewMetrics(t *testing.T) {
	metrics, _ := newTestMetrics(t, false)

	if metrics.requestsTotal == nil {
		t.Error("expected requestsTotal to be initialized")
	}
	if metrics.requestDuration == nil {
		t.Error("expected requestDuration to be initialized")
	}
	if metrics.activeStreams == nil {
		t.Error("expected activeStreams to be initialized")
	}
	if metrics.streamsTotal == nil {
		t.Error("expected streamsTotal to be initialized")
	}
	if metrics.watchEventsTotal == nil {
		t.Error("expected watchEventsTotal to be initialized")
	}
	if metrics.linesSkippedTotal == nil {
		t.Error("expected linesSkippedTotal to be initialized")
	}
	if metrics.detailedLabels {
		t.Error("expected detailedLabels to be false")
	}
}

func TestMetrics_RecordRequest(t *testing.T) {
	metrics, reader := newTestMetrics(t, false)
	ctx := context.Background()

	metrics.RecordRequest(ctx, "GET", "pods", "default", 200, 50*time.Millisecond)
	metrics.RecordRequest(ctx, "GET", "pods", "default", 200, 20*time.Millisecond)
	metrics.RecordRequest(ctx, "DELETE", "pods", "default", 404, 10*time.Millisecond)
	metrics.RecordRequest(ctx, "GET", "services", "default", 0, time.Second)

	data := collect(t, reader)

	requests := data["kubewire_requests_total"]
	if got := sumValue(t, requests, hasAttr(attrStatus, "200")); got != 2 {
		t.Errorf("expected 2 requests with status 200, got %d", got)
	}
	if got := sumValue(t, requests, hasAttr(attrStatus, "404")); got != 1 {
		t.Errorf("expected 1 request with status 404, got %d", got)
	}
	if got := sumValue(t, requests, hasAttr(attrStatus, StatusError)); got != 1 {
		t.Errorf("expected 1 transport failure, got %d", got)
	}

	// Namespace stays off the labels unless detailed labels are enabled
	if got := sumValue(t, requests, func(s attribute.Set) bool { return s.HasValue(attrNamespace) }); got != 0 {
		t.Errorf("expected no namespace label, got %d points with it", got)
	}

	hist, ok := data["kubewire_request_duration_seconds"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", data["kubewire_request_duration_seconds"])
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 4 {
		t.Errorf("expected 4 recorded durations, got %d", count)
	}
}

func TestMetrics_RecordRequest_DetailedLabels(t *testing.T) {
	metrics, reader := newTestMetrics(t, true)

	metrics.RecordRequest(context.Background(), "GET", "pods", "kube-system", 200, time.Millisecond)

	data := collect(t, reader)
	if got := sumValue(t, data["kubewire_requests_total"], hasAttr(attrNamespace, "kube-system")); got != 1 {
		t.Errorf("expected namespace label with detailed labels, got %d", got)
	}
}

func TestMetrics_Streams(t *testing.T) {
	metrics, reader := newTestMetrics(t, false)
	ctx := context.Background()

	metrics.StreamOpened(ctx, StreamKindWatch)
	metrics.StreamOpened(ctx, StreamKindWatch)
	metrics.StreamOpened(ctx, StreamKindLogs)
	metrics.StreamClosed(ctx, StreamKindWatch, "cancelled")
	metrics.RecordWatchEvent(ctx, "ADDED")
	metrics.RecordWatchEvent(ctx, "ADDED")
	metrics.RecordWatchEvent(ctx, "BOOKMARK")
	metrics.RecordSkippedLine(ctx, StreamKindWatch)

	data := collect(t, reader)

	if got := sumValue(t, data["kubewire_active_streams"], hasAttr(attrKind, StreamKindWatch)); got != 1 {
		t.Errorf("expected 1 active watch stream, got %d", got)
	}
	if got := sumValue(t, data["kubewire_active_streams"], hasAttr(attrKind, StreamKindLogs)); got != 1 {
		t.Errorf("expected 1 active log stream, got %d", got)
	}
	if got := sumValue(t, data["kubewire_streams_total"], hasAttr(attrState, "cancelled")); got != 1 {
		t.Errorf("expected 1 cancelled stream, got %d", got)
	}
	if got := sumValue(t, data["kubewire_watch_events_total"], hasAttr(attrType, "ADDED")); got != 2 {
		t.Errorf("expected 2 ADDED events, got %d", got)
	}
	if got := sumValue(t, data["kubewire_stream_lines_skipped_total"], hasAttr(attrKind, StreamKindWatch)); got != 1 {
		t.Errorf("expected 1 skipped line, got %d", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	for name, metrics := range map[string]*Metrics{
		"nil receiver":  nil,
		"uninitialized": {},
	} {
		t.Run(name, func(t *testing.T) {
			// None of these may panic
			metrics.RecordRequest(ctx, "GET", "pods", "default", 200, time.Millisecond)
			metrics.StreamOpened(ctx, StreamKindWatch)
			metrics.StreamClosed(ctx, StreamKindWatch, "completed")
			metrics.RecordWatchEvent(ctx, "ADDED")
			metrics.RecordSkippedLine(ctx, StreamKindLogs)
		})
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	metrics, reader := newTestMetrics(t, false)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				metrics.RecordWatchEvent(ctx, "MODIFIED")
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	data := collect(t, reader)
	if got := sumValue(t, data["kubewire_watch_events_total"], hasAttr(attrType, "MODIFIED")); got != 1000 {
		t.Errorf("expected 1000 events, got %d", got)
	}
}
