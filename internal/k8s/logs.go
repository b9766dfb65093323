package k8s

import (
	"context"
	"net/http"

	"github.com/giantswarm/kubewire/internal/instrumentation"
)

// StreamLogs opens the log of a pod container and delivers it line by line,
// verbatim except for the line terminator. Blank lines are kept.
//
// With Follow set the stream stays open until Stop, cancellation, a read
// failure or the server closing it; without Follow it completes at the end
// of the log.
func StreamLogs(ctx context.Context, c *Client, name, namespace string, opts LogOptions) (*Stream[string], error) {
	req, err := logRequest(ctx, c, name, namespace, opts)
	if err != nil {
		return nil, err
	}

	return openStream[string](ctx, c, req, instrumentation.StreamKindLogs, func(line []byte) (string, bool) {
		return string(line), true
	})
}

// GetLogs returns the whole log of a pod container. Follow is rejected
// since the call would never return.
func GetLogs(ctx context.Context, c *Client, name, namespace string, opts LogOptions) (string, error) {
	if opts.Follow {
		return "", &ConfigError{Field: "Follow", Reason: "GetLogs cannot follow; use StreamLogs"}
	}

	req, err := logRequest(ctx, c, name, namespace, opts)
	if err != nil {
		return "", err
	}

	var out string
	err = c.execute(ctx, req, func(data []byte) error {
		out = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func logRequest(ctx context.Context, c *Client, name, namespace string, opts LogOptions) (Request, error) {
	if name == "" {
		return Request{}, &ConfigError{Field: "name", Reason: "pod name is required"}
	}

	ns, err := c.scope(ctx, Pods, namespace, false)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Method:    http.MethodGet,
		Path:      Pods.Path(ns, name, "log"),
		Query:     opts.query(),
		Target:    Target{Resource: Pods.Plural, Name: name, Namespace: ns},
		Operation: instrumentation.OperationLogs,
	}, nil
}
