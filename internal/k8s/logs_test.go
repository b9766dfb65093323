package k8s

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func TestStreamLogsRequest(t *testing.T) {
	var gotURL string
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		_, _ = w.Write([]byte("line 1\n"))
	}))
	c := newTestClient(t, srv)

	s, err := StreamLogs(context.Background(), c, "web-0", "", LogOptions{TailLines: ptr.To[int64](10)})
	require.NoError(t, err)
	collect(t, s)

	assert.Equal(t, "/api/v1/namespaces/team-a/pods/web-0/log?tailLines=10", gotURL)
	assert.NotContains(t, gotURL, "follow")
}

func TestStreamLogsLinesVerbatim(t *testing.T) {
	body := "first\n\n  indented  \r\nwindows\r\n{\"json\":true}\nno newline at end"
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	c := newTestClient(t, srv)

	s, err := StreamLogs(context.Background(), c, "web-0", "team-b", LogOptions{Container: "app"})
	require.NoError(t, err)

	lines := collect(t, s)
	assert.Equal(t, []string{
		"first",
		"",
		"  indented  ",
		"windows",
		`{"json":true}`,
		"no newline at end",
	}, lines)
	assert.Equal(t, StreamCompleted, s.State())
	assert.NoError(t, s.Err())
}

func TestStreamLogsFollowUntilStop(t *testing.T) {
	var gotQuery string
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("started\n"))
		flush(w)
		<-r.Context().Done()
	}))
	c := newTestClient(t, srv)

	s, err := StreamLogs(context.Background(), c, "web-0", "", LogOptions{Follow: true, Timestamps: true})
	require.NoError(t, err)

	assert.Equal(t, "started", <-s.Items())
	s.Stop()

	assert.Equal(t, StreamCancelled, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, "follow=true&timestamps=true", gotQuery)
}

func TestStreamLogsErrors(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	c := newTestClient(t, srv)

	t.Run("missing pod", func(t *testing.T) {
		s, err := StreamLogs(context.Background(), c, "ghost", "", LogOptions{})
		assert.Nil(t, s)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "pods", nf.Resource)
		assert.Equal(t, "ghost", nf.Name)
		assert.Contains(t, err.Error(), "ghost")
	})

	t.Run("empty pod name", func(t *testing.T) {
		_, err := StreamLogs(context.Background(), c, "", "", LogOptions{})
		assert.Equal(t, KindConfig, KindOf(err))
	})
}

func TestGetLogs(t *testing.T) {
	srv := newFakeAPIServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a\nb\n"))
	}))
	c := newTestClient(t, srv)

	out, err := GetLogs(context.Background(), c, "web-0", "", LogOptions{Previous: true})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)

	_, err = GetLogs(context.Background(), c, "web-0", "", LogOptions{Follow: true})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Follow", cfgErr.Field)
}
