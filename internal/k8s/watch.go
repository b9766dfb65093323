package k8s

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

// WatchEvent is one line of a watch stream.
type WatchEvent[T any] struct {
	Type   watch.EventType `json:"type"`
	Object T               `json:"object"`

	// Status is set only for ERROR events whose object (a metav1.Status on
	// the wire) does not decode as a T. Object stays zero in that case.
	// Use ErrorStatus to read the status regardless of T.
	Status *metav1.Status `json:"-"`
}

// ErrorStatus returns the server's explanation carried by an ERROR event,
// or nil for other event types and for ERROR events without an object.
func (e WatchEvent[T]) ErrorStatus() *metav1.Status {
	if e.Type != watch.Error {
		return nil
	}
	if e.Status != nil {
		return e.Status
	}
	data, err := json.Marshal(&e.Object)
	if err != nil {
		return nil
	}
	var status metav1.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil
	}
	return &status
}

// Watch opens a change stream for res. BOOKMARK and ERROR events are
// delivered like any other; lines that do not decode are logged, counted
// and skipped. The stream never reconnects.
func Watch[T any](ctx context.Context, c *Client, res Resource, namespace string, opts WatchOptions) (*Stream[WatchEvent[T]], error) {
	ns, err := c.scope(ctx, res, namespace, opts.AllNamespaces)
	if err != nil {
		return nil, err
	}

	req := Request{
		Method:    http.MethodGet,
		Path:      res.Path(ns, ""),
		Query:     opts.query(),
		Target:    Target{Resource: res.Plural, Namespace: ns},
		Operation: instrumentation.OperationWatch,
	}

	metricsCtx := context.WithoutCancel(ctx)
	decode := func(line []byte) (WatchEvent[T], bool) {
		if len(bytes.TrimSpace(line)) == 0 {
			return WatchEvent[T]{}, false
		}
		ev, err := DecodeWatchEvent[T](line)
		if err != nil {
			c.logger.Warn("Skipping malformed watch event",
				logging.ResourceType(res.Plural),
				logging.Namespace(ns),
				logging.Err(err))
			c.metrics.RecordSkippedLine(metricsCtx, instrumentation.StreamKindWatch)
			return WatchEvent[T]{}, false
		}
		c.metrics.RecordWatchEvent(metricsCtx, string(ev.Type))
		return ev, true
	}

	return openStream[WatchEvent[T]](ctx, c, req, instrumentation.StreamKindWatch, decode)
}

type wireEvent struct {
	Type   watch.EventType `json:"type"`
	Object json.RawMessage `json:"object"`
}

// DecodeWatchEvent parses a single watch stream line.
func DecodeWatchEvent[T any](line []byte) (WatchEvent[T], error) {
	var raw wireEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return WatchEvent[T]{}, fmt.Errorf("invalid watch event: %w", err)
	}

	switch raw.Type {
	case watch.Added, watch.Modified, watch.Deleted, watch.Bookmark, watch.Error:
	case "":
		return WatchEvent[T]{}, errors.New("watch event has no type")
	default:
		return WatchEvent[T]{}, fmt.Errorf("unknown watch event type %q", raw.Type)
	}

	ev := WatchEvent[T]{Type: raw.Type}
	if raw.Type == watch.Error {
		if len(raw.Object) == 0 {
			return ev, nil
		}
		if err := json.Unmarshal(raw.Object, &ev.Object); err == nil {
			return ev, nil
		}
		var zero T
		ev.Object = zero
		var status metav1.Status
		if err := json.Unmarshal(raw.Object, &status); err == nil {
			ev.Status = &status
		}
		return ev, nil
	}

	// An explicit null is what a nil pointer T encodes to, so it decodes
	// back to the zero T. A missing object is malformed.
	if len(raw.Object) == 0 {
		return WatchEvent[T]{}, fmt.Errorf("%s event has no object", raw.Type)
	}
	if err := json.Unmarshal(raw.Object, &ev.Object); err != nil {
		return WatchEvent[T]{}, fmt.Errorf("invalid %s event object: %w", raw.Type, err)
	}
	return ev, nil
}

// EncodeWatchEvent renders ev as one newline-terminated stream line.
// ERROR events carrying a Status encode the Status as the object;
// otherwise Object is encoded, so DecodeWatchEvent reproduces ev.
func EncodeWatchEvent[T any](ev WatchEvent[T]) ([]byte, error) {
	// Pointer so that pointer-receiver marshalers such as
	// unstructured.Unstructured are used.
	var obj any = &ev.Object
	if ev.Type == watch.Error && ev.Status != nil {
		obj = ev.Status
	}

	data, err := json.Marshal(struct {
		Type   watch.EventType `json:"type"`
		Object any             `json:"object"`
	}{Type: ev.Type, Object: obj})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
