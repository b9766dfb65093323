package k8s

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

// Request describes one call against the API server.
type Request struct {
	Method string
	// Path is appended to the base URL as is; build it with Resource.Path.
	Path  string
	Query *Query
	// Body is sent verbatim when it is []byte or json.RawMessage and
	// JSON-encoded otherwise. Nil sends no body.
	Body any
	// ContentType defaults to application/json. Patch calls set a
	// types.PatchType here.
	ContentType string
	Target      Target
	// Operation names the call in spans and logs. Derived from Method when
	// empty.
	Operation string
}

// Target names what a request addresses. It is used to build NotFoundError
// and to label telemetry.
type Target struct {
	Resource  string
	Name      string
	Namespace string
}

func (r Request) operation() string {
	if r.Operation != "" {
		return r.Operation
	}
	switch r.Method {
	case http.MethodPost:
		return instrumentation.OperationCreate
	case http.MethodPut:
		return instrumentation.OperationUpdate
	case http.MethodPatch:
		return instrumentation.OperationPatch
	case http.MethodDelete:
		return instrumentation.OperationDelete
	}
	if r.Target.Name == "" {
		return instrumentation.OperationList
	}
	return instrumentation.OperationGet
}

// Execute performs req and decodes a 2xx body into T. An empty 2xx body
// yields the zero T. Failures are one of AuthenticationError, NotFoundError,
// APIError or ClientError; nothing is retried.
func Execute[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	err := c.execute(ctx, req, func(data []byte) error {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// execute runs a bounded request and hands the full 2xx body to decode.
func (c *Client) execute(ctx context.Context, req Request, decode func([]byte) error) error {
	op := req.operation()
	ctx, span := instrumentation.StartK8sSpan(ctx, op, req.Target.Resource, req.Target.Namespace,
		attribute.String(instrumentation.SpanAttrResourceName, req.Target.Name))
	defer span.End()

	ctx, release := c.bind(ctx)
	defer release()
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	statusCode := 0

	err := func() error {
		resp, err := c.send(ctx, op, req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)

		statusCode = resp.StatusCode
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrStatusCode, statusCode))

		if err := checkResponse(resp, req.Target); err != nil {
			return err
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(ctx, "read response", err)
		}
		if err := decode(data); err != nil {
			return &ClientError{Op: "decode response", Err: err}
		}
		return nil
	}()

	duration := time.Since(start)
	c.metrics.RecordRequest(ctx, req.Method, req.Target.Resource, req.Target.Namespace, statusCode, duration)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.logger.Debug("Request failed",
			logging.Operation(op),
			logging.Path(req.Path),
			logging.StatusCode(statusCode),
			logging.SanitizedErr(err))
		return err
	}

	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("Request completed",
		logging.Operation(op),
		logging.Path(req.Path),
		logging.StatusCode(statusCode),
		logging.Duration(duration))
	return nil
}

// send builds and sends the HTTP request. The response body belongs to the
// caller.
func (c *Client) send(ctx context.Context, op string, req Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, &ClientError{Op: op, Err: ErrClientClosed}
	}

	conn, err := c.Connection(ctx)
	if err != nil {
		return nil, err
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, &ClientError{Op: "encode request body", Err: err}
	}

	target := conn.BaseURL + req.Path
	if q := req.Query.Encode(); q != "" {
		target += "?" + q
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &ClientError{Op: "build request", Err: err}
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", contentType)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := conn.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, op, err)
	}
	return resp, nil
}

// transportError reports a failure caused by Client.Close as ErrClientClosed
// and everything else as-is, both as ClientError.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if errors.Is(context.Cause(ctx), ErrClientClosed) {
		return &ClientError{Op: op, Err: ErrClientClosed}
	}
	return &ClientError{Op: op, Err: err}
}

func encodeBody(v any) (io.Reader, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// checkResponse maps a non-2xx response onto the error taxonomy:
// 404 is NotFoundError, 401/403 AuthenticationError, anything else APIError.
func checkResponse(resp *http.Response, target Target) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body := readErrorBody(resp.Body)
	status := decodeStatus(body)
	message := ""
	if status != nil {
		message = status.Message
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{
			Resource:  target.Resource,
			Name:      target.Name,
			Namespace: target.Namespace,
			Message:   message,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{StatusCode: resp.StatusCode, Reason: message}
	}

	return &APIError{StatusCode: resp.StatusCode, Body: body, Status: status}
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return unreadableBody
	}
	return string(data)
}

func decodeStatus(body string) *metav1.Status {
	if body == "" || body == unreadableBody {
		return nil
	}
	var status metav1.Status
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		return nil
	}
	if status.Kind != "Status" && status.Status == "" {
		return nil
	}
	return &status
}

// drainAndClose lets the connection go back to the pool.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
