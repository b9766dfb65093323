package k8s

import (
	"net/http"

	"golang.org/x/oauth2"
	utilnet "k8s.io/apimachinery/pkg/util/net"
	"k8s.io/client-go/transport"
)

// ConnectionContext is the resolved endpoint, credentials and trust for a
// client. It is immutable once built and owns the client's connection pool.
type ConnectionContext struct {
	BaseURL     string
	BearerToken string
	Namespace   string
	Trust       TrustPolicy

	transport  *http.Transport
	httpClient *http.Client
}

func newConnectionContext(id Identity, trust TrustPolicy, cfg *ClientConfig) *ConnectionContext {
	tr := utilnet.SetTransportDefaults(&http.Transport{
		TLSClientConfig: trust.TLSConfig,
		// Bounds how long a request, streams included, may wait for headers.
		ResponseHeaderTimeout: cfg.Timeout,
	})

	var rt http.RoundTripper = tr
	if cfg.DebugMode {
		rt = transport.NewDebuggingRoundTripper(rt, transport.DebugURLTiming, transport.DebugResponseStatus)
	}
	rt = authRoundTripper(id, rt)
	rt = transport.NewUserAgentRoundTripper(cfg.UserAgent, rt)

	return &ConnectionContext{
		BaseURL:     id.Host,
		BearerToken: id.Token,
		Namespace:   id.Namespace,
		Trust:       trust,
		transport:   tr,
		// No client-level timeout: it would cut long-lived streams.
		httpClient: &http.Client{Transport: rt},
	}
}

// authRoundTripper attaches the bearer token. Token sources are consulted
// per request and refreshed once the cached token expires. Token files are
// re-read periodically, which picks up projected service account rotation.
func authRoundTripper(id Identity, rt http.RoundTripper) http.RoundTripper {
	switch {
	case id.tokenSource != nil:
		return &oauth2.Transport{Source: id.tokenSource, Base: rt}
	case id.tokenFile != "":
		refreshing, err := transport.NewBearerAuthWithRefreshRoundTripper(id.Token, id.tokenFile, rt)
		if err == nil {
			return refreshing
		}
	}
	return transport.NewBearerAuthRoundTripper(id.Token, rt)
}

// HTTPClient returns the pooled client carrying auth and user agent.
func (c *ConnectionContext) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *ConnectionContext) closeIdle() {
	c.transport.CloseIdleConnections()
}
