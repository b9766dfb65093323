package k8s

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"github.com/giantswarm/kubewire/internal/logging"
)

// Identity is who the client talks to and as whom. Token is the credential
// seen at resolution time; requests re-read the token file or token source
// so that rotated credentials are picked up.
type Identity struct {
	Host      string
	Token     string
	Namespace string

	tokenFile   string
	tokenSource oauth2.TokenSource
}

// identityResolver resolves an Identity from explicit configuration first,
// then the in-cluster service account files, then defaults.
type identityResolver struct {
	host          string
	token         string
	tokenSource   oauth2.TokenSource
	tokenFile     string
	namespace     string
	namespaceFile string
	logger        Logger
}

func newIdentityResolver(cfg *ClientConfig) *identityResolver {
	r := &identityResolver{
		host:          cfg.Host,
		token:         cfg.Token,
		tokenSource:   cfg.TokenSource,
		tokenFile:     cfg.TokenFile,
		namespace:     cfg.Namespace,
		namespaceFile: cfg.NamespaceFile,
		logger:        cfg.Logger,
	}
	if r.tokenFile == "" {
		r.tokenFile = DefaultTokenPath
	}
	if r.namespaceFile == "" {
		r.namespaceFile = DefaultNamespacePath
	}
	return r
}

// Resolve produces the identity or an AuthenticationError when no token can
// be found. Namespace problems only log and fall back to "default".
func (r *identityResolver) Resolve(ctx context.Context) (Identity, error) {
	host, err := r.resolveHost()
	if err != nil {
		return Identity{}, err
	}

	token, source, err := r.resolveToken(ctx)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{
		Host:        host,
		Token:       token,
		Namespace:   r.resolveNamespace(),
		tokenSource: source,
	}
	if r.token == "" && source == nil {
		id.tokenFile = r.tokenFile
	}
	return id, nil
}

func (r *identityResolver) resolveHost() (string, error) {
	if r.host != "" {
		u, err := normalizeHost(r.host)
		if err != nil {
			return "", &ConfigError{Field: "Host", Reason: err.Error()}
		}
		return u.String(), nil
	}

	host := os.Getenv(EnvServiceHost)
	if host == "" {
		host = DefaultInClusterHost
	}
	port := os.Getenv(EnvServicePort)
	if port == "" {
		port = DefaultInClusterPort
	}
	return "https://" + net.JoinHostPort(host, port), nil
}

// resolveToken returns the current token and, for a configured TokenSource,
// a source that reuses it until it expires.
func (r *identityResolver) resolveToken(ctx context.Context) (string, oauth2.TokenSource, error) {
	if r.token != "" {
		return r.token, nil, nil
	}

	if r.tokenSource != nil {
		if err := ctx.Err(); err != nil {
			return "", nil, &ClientError{Op: "resolve token", Err: err}
		}
		tok, err := r.tokenSource.Token()
		if err != nil {
			return "", nil, &AuthenticationError{Reason: "token source failed", Err: err}
		}
		if tok.AccessToken == "" {
			return "", nil, &AuthenticationError{Reason: "token source returned an empty token"}
		}
		return tok.AccessToken, oauth2.ReuseTokenSource(tok, r.tokenSource), nil
	}

	data, err := os.ReadFile(r.tokenFile)
	if err != nil {
		return "", nil, &AuthenticationError{Reason: fmt.Sprintf("cannot read token file %s", r.tokenFile), Err: err}
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", nil, &AuthenticationError{Reason: fmt.Sprintf("token file %s is empty", r.tokenFile)}
	}

	r.logger.Debug("Loaded service account token", "path", r.tokenFile, "token", logging.SanitizeToken(token))
	return token, nil, nil
}

func (r *identityResolver) resolveNamespace() string {
	if r.namespace != "" {
		return r.namespace
	}

	data, err := os.ReadFile(r.namespaceFile)
	if err != nil {
		r.logger.Warn("Cannot read namespace file, using default namespace",
			"path", r.namespaceFile, logging.Err(err), logging.Namespace(DefaultNamespace))
		return DefaultNamespace
	}

	ns := strings.TrimSpace(string(data))
	if ns == "" {
		r.logger.Warn("Namespace file is empty, using default namespace",
			"path", r.namespaceFile, logging.Namespace(DefaultNamespace))
		return DefaultNamespace
	}
	return ns
}

// normalizeHost accepts "host", "host:port" or a full http(s) URL and
// returns the base URL with any trailing slash removed.
func normalizeHost(host string) (*url.URL, error) {
	raw := strings.TrimSpace(host)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q (expected http or https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", host)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("host must not carry a query or fragment")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u, nil
}
