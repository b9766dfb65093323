package cmd

import (
	"bytes"
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testToken     = "cli-token-xyz"
	testNamespace = "team-a"
)

// apiServer is a TLS fake API server plus the CA bundle that trusts it.
type apiServer struct {
	*httptest.Server
	caFile string
}

func newAPIServer(t *testing.T, handler http.HandlerFunc) *apiServer {
	t.Helper()

	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	caFile := filepath.Join(t.TempDir(), "ca.crt")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0o600))

	return &apiServer{Server: srv, caFile: caFile}
}

// connArgs are the global flags pointing the CLI at srv.
func (s *apiServer) connArgs() []string {
	return []string{
		"--server", s.URL,
		"--token", testToken,
		"--ca-file", s.caFile,
		"-n", testNamespace,
	}
}

// runCLI executes a fresh command tree and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// runAgainst runs the CLI with the connection flags for srv prepended to
// the command's own arguments.
func runAgainst(t *testing.T, srv *apiServer, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append(args, srv.connArgs()...)...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const notFoundStatus = `{"kind":"Status","apiVersion":"v1","status":"Failure","message":"not found","reason":"NotFound","code":404}`

// pathRecorder remembers request paths seen by a handler.
type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) record(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathRecorder) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func (p *pathRecorder) last() string {
	all := p.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}
