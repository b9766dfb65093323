package k8s

import (
	"context"
	"net/http"

	"k8s.io/apimachinery/pkg/version"

	"github.com/giantswarm/kubewire/internal/instrumentation"
)

// ServerVersion gets the Kubernetes API server version.
func ServerVersion(ctx context.Context, c *Client) (*version.Info, error) {
	info, err := Execute[version.Info](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/version",
		Target:    Target{Resource: "version"},
		Operation: instrumentation.OperationVersion,
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Ping tests basic connectivity to the API server with the resolved
// credentials.
func Ping(ctx context.Context, c *Client) error {
	_, err := ServerVersion(ctx, c)
	return err
}
