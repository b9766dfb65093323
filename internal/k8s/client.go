package k8s

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kubewire/internal/instrumentation"
	"github.com/giantswarm/kubewire/internal/logging"
)

// ClientConfig holds configuration for the Kubernetes client. Zero values
// select the in-cluster defaults.
type ClientConfig struct {
	// Endpoint. Empty means KUBERNETES_SERVICE_HOST/PORT, then
	// kubernetes.default.svc:443.
	Host string

	// Credentials. Token and TokenSource are mutually exclusive; with
	// neither set the token is read from TokenFile.
	Token       string
	TokenSource oauth2.TokenSource
	TokenFile   string

	// Default namespace for namespaced calls. Empty means NamespaceFile,
	// then "default".
	Namespace     string
	NamespaceFile string

	// CA bundle used to verify the API server. Empty means the in-cluster
	// bundle, falling back to the system trust store.
	CACertFile string

	// Timeout bounds each non-streaming request (default 30s).
	Timeout time.Duration

	UserAgent string

	// Debug settings
	DebugMode bool

	// Logging
	Logger Logger

	// Metrics may be nil.
	Metrics *instrumentation.Metrics
}

// Logger interface for client logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Client talks to one Kubernetes API server. It is safe for concurrent use.
type Client struct {
	config   ClientConfig
	logger   Logger
	metrics  *instrumentation.Metrics
	identity *identityResolver

	conn lazyValue[*ConnectionContext]

	closed    atomic.Bool
	closeOnce sync.Once
	closeCtx  context.Context
	closeFn   context.CancelFunc
}

// NewClient validates config and returns a client. Credentials and trust
// are resolved on first use, so NewClient never touches the filesystem.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, &ConfigError{Field: "config", Reason: "client configuration is required"}
	}

	cfg := *config
	if cfg.Host != "" {
		if _, err := normalizeHost(cfg.Host); err != nil {
			return nil, &ConfigError{Field: "Host", Reason: err.Error()}
		}
	}
	if cfg.Token != "" && cfg.TokenSource != nil {
		return nil, &ConfigError{Field: "Token", Reason: "Token and TokenSource are mutually exclusive"}
	}
	if cfg.Timeout < 0 {
		return nil, &ConfigError{Field: "Timeout", Reason: "must not be negative"}
	}

	// Set defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	closeCtx, closeFn := context.WithCancelCause(context.Background())

	return &Client{
		config:   cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		identity: newIdentityResolver(&cfg),
		closeCtx: closeCtx,
		closeFn:  func() { closeFn(ErrClientClosed) },
	}, nil
}

// Connection resolves the connection context on first use and returns the
// memoized value afterwards. A failed resolution is retried on the next call.
func (c *Client) Connection(ctx context.Context) (*ConnectionContext, error) {
	if c.closed.Load() {
		return nil, &ClientError{Op: "connect", Err: ErrClientClosed}
	}
	return c.conn.Get(func() (*ConnectionContext, error) {
		conn, err := c.connect(ctx)
		if err != nil {
			return nil, err
		}
		// Close may have run while credentials were being resolved. It saw
		// no connection to release, so this one must not be published.
		if c.closed.Load() {
			conn.closeIdle()
			return nil, &ClientError{Op: "connect", Err: ErrClientClosed}
		}
		return conn, nil
	})
}

func (c *Client) connect(ctx context.Context) (*ConnectionContext, error) {
	id, err := c.identity.Resolve(ctx)
	if err != nil {
		c.logger.Error("Failed to resolve client identity", logging.Err(err))
		return nil, err
	}

	trust := newTrustPolicy(c.config.CACertFile, c.logger)
	conn := newConnectionContext(id, trust, &c.config)

	c.logger.Info("Resolved API server connection",
		logging.Host(conn.BaseURL),
		logging.Namespace(conn.Namespace),
		"trust", trust.Source)
	return conn, nil
}

// Namespace returns the default namespace for namespaced calls.
func (c *Client) Namespace(ctx context.Context) (string, error) {
	conn, err := c.Connection(ctx)
	if err != nil {
		return "", err
	}
	return conn.Namespace, nil
}

// Close cancels in-flight requests and streams, releases pooled connections
// and makes every later call fail with ErrClientClosed. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeFn()
		if conn, ok := c.conn.Peek(); ok {
			conn.closeIdle()
		}
		c.logger.Debug("Client closed")
	})
	return nil
}

// bind derives a context that is also cancelled when the client closes.
// The returned release func must be called once the request is finished.
func (c *Client) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.closeCtx, func() { cancel(ErrClientClosed) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// scope resolves the namespace a call addresses.
func (c *Client) scope(ctx context.Context, res Resource, namespace string, allNamespaces bool) (string, error) {
	if !res.Namespaced || allNamespaces {
		return "", nil
	}
	if namespace != "" {
		return namespace, nil
	}
	return c.Namespace(ctx)
}
