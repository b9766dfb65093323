package integration

import (
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// endlessWatch serves a watch that emits an event every 20ms until the
// client goes away.
func endlessWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	for i := 0; ; i++ {
		line := fmt.Sprintf(`{"type":"MODIFIED","object":{"kind":"Pod","apiVersion":"v1","metadata":{"name":"web-%d"}}}`+"\n", i)
		if _, err := w.Write([]byte(line)); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatchGracefulShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available, skipping integration test")
	}

	binary := filepath.Join(t.TempDir(), "kubewire-test")
	buildCmd := exec.Command("go", "build", "-o", binary, ".")
	buildCmd.Dir = "../../" // Go back to project root
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build kubewire: %v\n%s", err, out)
	}

	srv := httptest.NewTLSServer(http.HandlerFunc(endlessWatch))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.crt")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(caFile, caPEM, 0o600); err != nil {
		t.Fatalf("Failed to write CA bundle: %v", err)
	}

	env := append(os.Environ(),
		"KUBEWIRE_SERVER="+srv.URL,
		"KUBEWIRE_TOKEN=integration-token",
		"KUBEWIRE_CA_FILE="+caFile,
		"KUBEWIRE_NAMESPACE=default",
	)

	t.Run("SIGTERM handling", func(t *testing.T) {
		testSignalHandling(t, binary, env, syscall.SIGTERM)
	})

	t.Run("SIGINT handling", func(t *testing.T) {
		testSignalHandling(t, binary, env, syscall.SIGINT)
	})
}

func testSignalHandling(t *testing.T, binary string, env []string, signal syscall.Signal) {
	var stdout strings.Builder
	cmd := exec.Command(binary, "watch", "pods")
	cmd.Env = env
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start kubewire: %v", err)
	}

	// Let a few events arrive before interrupting.
	time.Sleep(300 * time.Millisecond)

	if err := cmd.Process.Signal(signal); err != nil {
		t.Fatalf("Failed to send %s signal: %v", signal, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			t.Fatalf("Interrupted watch should exit cleanly, got: %v", exitError)
		}
		if err != nil {
			t.Fatalf("Process exited with unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "Modified pod/web-0") {
			t.Errorf("expected watch output before the %s signal, got %q", signal, stdout.String())
		}
		t.Logf("kubewire watch handled %s signal", signal)
	case <-time.After(5 * time.Second):
		if err := cmd.Process.Kill(); err != nil {
			t.Logf("Failed to force kill process: %v", err)
		}
		t.Fatalf("kubewire did not exit within 5 seconds after %s signal", signal)
	}
}
