package k8s

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

// StreamState is the lifecycle position of a Stream.
type StreamState int32

const (
	// StreamConnecting covers the opening request. Watch and StreamLogs
	// block through it, so a returned stream is already past it.
	StreamConnecting StreamState = iota
	StreamStreaming
	StreamCompleted
	StreamFailed
	StreamCancelled
)

// String implements fmt.Stringer.
func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamStreaming:
		return "streaming"
	case StreamCompleted:
		return "completed"
	case StreamFailed:
		return "failed"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stream delivers items decoded from a line-oriented response body.
//
// Items arrive on an unbuffered channel in the order the server sent them.
// The channel is closed when the stream ends: Completed at body end,
// Cancelled after Stop or caller context cancellation, Failed on a read
// error or Client.Close. Only Failed sets Err.
type Stream[T any] struct {
	items  chan T
	done   chan struct{}
	body   io.ReadCloser
	cancel context.CancelFunc

	state atomic.Int32

	mu  sync.Mutex
	err error
}

// Items returns the channel items are delivered on.
func (s *Stream[T]) Items() <-chan T {
	return s.items
}

// Done is closed once the stream has ended and its connection is released.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Stop cancels the stream and waits for it to wind down. No item is
// delivered after Stop returns. Safe to call more than once and from the
// goroutine ranging over Items.
func (s *Stream[T]) Stop() {
	s.cancel()
	<-s.done
}

// Err returns the failure that ended the stream, or nil.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Stream[T]) State() StreamState {
	return StreamState(s.state.Load())
}

// lineDecoder turns one line, without its terminator, into an item.
// Returning false skips the line.
type lineDecoder[T any] func(line []byte) (T, bool)

// openStream sends req and, on a 2xx response, starts a producer goroutine
// feeding decoded lines into a new Stream. Non-2xx responses are classified
// like Execute and no stream is created.
func openStream[T any](ctx context.Context, c *Client, req Request, kind string, decode lineDecoder[T]) (*Stream[T], error) {
	op := req.operation()
	ctx, span := instrumentation.StartK8sSpan(ctx, op, req.Target.Resource, req.Target.Namespace,
		attribute.String(instrumentation.SpanAttrResourceName, req.Target.Name))

	ctx, release := c.bind(ctx)
	ctx, cancel := context.WithCancel(ctx)

	start := time.Now()
	statusCode := 0
	resp, err := c.send(ctx, op, req)
	if err == nil {
		statusCode = resp.StatusCode
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrStatusCode, statusCode))
		if err = checkResponse(resp, req.Target); err != nil {
			drainAndClose(resp.Body)
		}
	}
	c.metrics.RecordRequest(ctx, req.Method, req.Target.Resource, req.Target.Namespace, statusCode, time.Since(start))

	if err != nil {
		cancel()
		release()
		instrumentation.SetSpanError(span, err)
		span.End()
		c.logger.Debug("Failed to open stream", logging.Stream(kind), logging.Path(req.Path), logging.SanitizedErr(err))
		return nil, err
	}

	s := &Stream[T]{
		items:  make(chan T),
		done:   make(chan struct{}),
		body:   resp.Body,
		cancel: cancel,
	}
	s.state.Store(int32(StreamStreaming))

	metricsCtx := context.WithoutCancel(ctx)
	c.metrics.StreamOpened(metricsCtx, kind)
	c.logger.Debug("Stream opened", logging.Stream(kind), logging.Path(req.Path))

	go s.run(ctx, kind, decode, func(state StreamState, err error) {
		c.metrics.StreamClosed(metricsCtx, kind, state.String())
		span.SetAttributes(attribute.String(instrumentation.SpanAttrStreamState, state.String()))
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
		cancel()
		release()
		c.logger.Debug("Stream finished", logging.Stream(kind), "state", state.String(), logging.Err(err))
	})

	return s, nil
}

func (s *Stream[T]) run(ctx context.Context, kind string, decode lineDecoder[T], onFinish func(StreamState, error)) {
	state, err := s.pump(ctx, kind, decode)
	_ = s.body.Close()

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.state.Store(int32(state))

	close(s.items)
	onFinish(state, err)
	close(s.done)
}

// pump reads with bufio.Reader rather than bufio.Scanner so that a single
// object larger than the scanner's token limit does not break the stream.
func (s *Stream[T]) pump(ctx context.Context, kind string, decode lineDecoder[T]) (StreamState, error) {
	reader := bufio.NewReader(s.body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if item, ok := decode(trimLineEnding(line)); ok {
				select {
				case s.items <- item:
				case <-ctx.Done():
					return interrupted(ctx, kind)
				}
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return interrupted(ctx, kind)
			}
			if errors.Is(readErr, io.EOF) {
				return StreamCompleted, nil
			}
			return StreamFailed, &ClientError{Op: "read " + kind + " stream", Err: readErr}
		}
	}
}

// interrupted distinguishes Client.Close, which fails the stream, from Stop
// and caller cancellation.
func interrupted(ctx context.Context, kind string) (StreamState, error) {
	if errors.Is(context.Cause(ctx), ErrClientClosed) {
		return StreamFailed, &ClientError{Op: "read " + kind + " stream", Err: ErrClientClosed}
	}
	return StreamCancelled, nil
}

func trimLineEnding(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
