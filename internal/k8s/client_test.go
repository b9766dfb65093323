package k8s

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    *ClientConfig
		wantField string
	}{
		{name: "nil config", config: nil, wantField: "config"},
		{name: "bad scheme", config: &ClientConfig{Host: "ftp://api.example.com"}, wantField: "Host"},
		{name: "missing host", config: &ClientConfig{Host: "https://"}, wantField: "Host"},
		{
			name: "token and token source",
			config: &ClientConfig{
				Token:       "a",
				TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "b"}),
			},
			wantField: "Token",
		},
		{name: "negative timeout", config: &ClientConfig{Timeout: -time.Second}, wantField: "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.config)
			assert.Nil(t, c)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, KindConfig, KindOf(err))
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(&ClientConfig{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultTimeout*time.Second, c.config.Timeout)
	assert.Equal(t, DefaultUserAgent, c.config.UserAgent)
	assert.NotNil(t, c.logger)
	assert.False(t, c.conn.IsSet(), "connection must be resolved lazily")
}

func TestNewClientCopiesConfig(t *testing.T) {
	cfg := &ClientConfig{Host: "https://api.example.com"}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	cfg.Host = "https://other.example.com"
	assert.Equal(t, "https://api.example.com", c.config.Host)
	assert.Zero(t, cfg.Timeout)
}

func TestClientResolvesCredentialsOnFirstUse(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer late-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"metadata":{"name":"cfg"}}`))
	}))

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")

	c := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.Token = ""
		cfg.TokenFile = tokenFile
	})

	// No token yet: the failure is not memoized.
	_, err := Get[map[string]any](context.Background(), c, ConfigMaps, "", "cfg")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.StatusCode)

	writeFile(t, dir, "token", "late-token\n")

	_, err = Get[map[string]any](context.Background(), c, ConfigMaps, "", "cfg")
	require.NoError(t, err)
}

func TestClientNamespace(t *testing.T) {
	srv := newFakeAPIServer(t, http.NotFoundHandler())

	c := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.Namespace = ""
		cfg.NamespaceFile = writeFile(t, t.TempDir(), "namespace", "team-c\n")
	})

	ns, err := c.Namespace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "team-c", ns)
}

func TestClientConnectionIsResolvedOnce(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	logger := &MockLogger{}
	logger.On("Info", "Resolved API server connection", mock.Anything).Once()
	logger.On("Debug", mock.Anything, mock.Anything).Maybe()

	c := newTestClient(t, srv, func(cfg *ClientConfig) { cfg.Logger = logger })

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := Get[map[string]any](context.Background(), c, Pods, "", "web-0")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logger.AssertExpectations(t)
}

func TestClientClose(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	c := newTestClient(t, srv)

	_, err := Get[map[string]any](context.Background(), c, Pods, "", "web-0")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close must be idempotent")

	_, err = Get[map[string]any](context.Background(), c, Pods, "", "web-0")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Equal(t, KindClient, KindOf(err))

	_, err = c.Connection(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)

	_, err = Watch[map[string]any](context.Background(), c, Pods, "", WatchOptions{})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientCloseCancelsInFlightRequest(t *testing.T) {
	arrived := make(chan struct{})
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	c := newTestClient(t, srv)

	errCh := make(chan error, 1)
	go func() {
		_, err := Get[map[string]any](context.Background(), c, Pods, "", "web-0")
		errCh <- err
	}()

	<-arrived
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrClientClosed), "got %v", err)
		assert.Equal(t, KindClient, KindOf(err))
	case <-time.After(3 * time.Second):
		t.Fatal("request was not cancelled by Close")
	}
}

// gatedTokenSource blocks in Token until release is closed.
type gatedTokenSource struct {
	called  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedTokenSource) Token() (*oauth2.Token, error) {
	s.once.Do(func() { close(s.called) })
	<-s.release
	return &oauth2.Token{AccessToken: "gated-token"}, nil
}

func TestClientCloseDuringFirstConnection(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	source := &gatedTokenSource{called: make(chan struct{}), release: make(chan struct{})}
	c := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.Token = ""
		cfg.TokenSource = source
	})

	connErr := make(chan error, 1)
	go func() {
		_, err := c.Connection(context.Background())
		connErr <- err
	}()
	<-source.called

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	require.Eventually(t, c.closed.Load, time.Second, time.Millisecond)
	close(source.release)

	select {
	case err := <-connErr:
		assert.ErrorIs(t, err, ErrClientClosed)
		assert.Equal(t, KindClient, KindOf(err))
	case <-time.After(3 * time.Second):
		t.Fatal("connection did not finish")
	}
	<-closed

	_, ok := c.conn.Peek()
	assert.False(t, ok, "a connection resolved during Close must not be kept")
}

// rotatingTokenSource hands out a new, already stale token on every call.
type rotatingTokenSource struct {
	mu    sync.Mutex
	calls int
}

func (s *rotatingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &oauth2.Token{AccessToken: fmt.Sprintf("token-%d", s.calls), Expiry: time.Now().Add(time.Second)}, nil
}

func TestClientRefreshesCredentials(t *testing.T) {
	tokenFile := writeFile(t, t.TempDir(), "token", "file-token\n")

	tests := []struct {
		name   string
		mutate func(*ClientConfig)
		want   []string
	}{
		{
			name: "token source",
			mutate: func(cfg *ClientConfig) {
				cfg.Token = ""
				cfg.TokenSource = &rotatingTokenSource{}
			},
			// token-1 is consumed at resolution and is already stale.
			want: []string{"Bearer token-2", "Bearer token-3"},
		},
		{
			name: "token file",
			mutate: func(cfg *ClientConfig) {
				cfg.Token = ""
				cfg.TokenFile = tokenFile
			},
			want: []string{"Bearer file-token", "Bearer file-token"},
		},
		{
			name:   "static token",
			mutate: func(*ClientConfig) {},
			want:   []string{"Bearer " + testToken, "Bearer " + testToken},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var seen []string
			srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				seen = append(seen, r.Header.Get("Authorization"))
				mu.Unlock()
				_, _ = w.Write([]byte(`{}`))
			}))
			c := newTestClient(t, srv, tt.mutate)

			for i := 0; i < 2; i++ {
				_, err := Get[map[string]any](context.Background(), c, Pods, "", "web-0")
				require.NoError(t, err)
			}

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.want, seen)
		})
	}
}
