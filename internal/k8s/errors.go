package k8s

import (
	"errors"
	"fmt"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Sentinel errors for the failure kinds every operation reports.
// Typed errors below match them through errors.Is().
var (
	// ErrAuthentication indicates missing credentials or a 401/403 response.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound indicates a 404 response for the addressed resource.
	ErrNotFound = errors.New("resource not found")

	// ErrAPI indicates any other non-2xx response from the API server.
	ErrAPI = errors.New("api server error")

	// ErrClient indicates a local failure: transport, encoding, decoding or
	// use of a closed client.
	ErrClient = errors.New("client error")

	// ErrConfig indicates invalid client configuration or arguments.
	ErrConfig = errors.New("invalid configuration")

	// ErrClientClosed is wrapped by the ClientError returned once Close has
	// been called.
	ErrClientClosed = errors.New("client is closed")
)

// AuthenticationError reports that the request could not be authenticated or
// authorized. StatusCode is zero when no credentials could be resolved.
type AuthenticationError struct {
	StatusCode int
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	msg := "authentication failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("authentication failed (HTTP %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// NotFoundError reports a 404 for a specific resource. Message is the
// server's own wording when the body carried a metav1.Status.
type NotFoundError struct {
	Resource  string
	Name      string
	Namespace string
	Message   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	switch {
	case e.Name != "" && e.Namespace != "":
		return fmt.Sprintf("%s %q not found in namespace %q", e.Resource, e.Name, e.Namespace)
	case e.Name != "":
		return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
	default:
		return fmt.Sprintf("%s not found", e.Resource)
	}
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// APIError carries any non-2xx response that is neither 404 nor 401/403.
//
// Body holds up to 1 MiB of the response, or "<unreadable response body>"
// when it could not be read. Status is set when the body decoded as a
// metav1.Status.
type APIError struct {
	StatusCode int
	Body       string
	Status     *metav1.Status
}

// Error implements the error interface.
func (e *APIError) Error() string {
	detail := e.Body
	if e.Status != nil && e.Status.Message != "" {
		detail = e.Status.Message
	}
	if len(detail) > 256 {
		detail = detail[:256] + "..."
	}
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api server returned HTTP %d: %s", e.StatusCode, detail)
}

// Is matches ErrAPI.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// ClientError wraps local failures: the transport could not deliver the
// request, a body could not be encoded or decoded, a stream broke, or the
// client was already closed.
type ClientError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is(err, context.Canceled)
// and friends.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is matches ErrClient.
func (e *ClientError) Is(target error) bool {
	return target == ErrClient
}

// ConfigError reports an invalid configuration value or argument.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ErrorKind is the coarse classification of an error returned by this package.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthentication
	KindNotFound
	KindAPI
	KindClient
	KindConfig
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not-found"
	case KindAPI:
		return "api"
	case KindClient:
		return "client"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAPI):
		return KindAPI
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrClient):
		return KindClient
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}
