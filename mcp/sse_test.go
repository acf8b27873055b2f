package mcp_test

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/docsrs/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) event {
	t.Helper()
	var ev event
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSEHandler(t *testing.T) {
	t.Parallel()

	t.Run("streams replies to posted messages", func(t *testing.T) {
		t.Parallel()

		s := newServer(t)
		srv := httptest.NewServer(mcp.NewSSEHandler(s))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/sse")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		stream := bufio.NewReader(resp.Body)
		endpoint := readEvent(t, stream)
		assert.Equal(t, "endpoint", endpoint.name)
		require.True(t, strings.HasPrefix(endpoint.data, "/message?sessionId="))
		assert.Equal(t, 1, s.Sessions())

		post, err := http.Post(srv.URL+endpoint.data, "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"crate_items","arguments":{"crate_name":"pkg"}}}`))
		require.NoError(t, err)
		post.Body.Close()
		assert.Equal(t, http.StatusAccepted, post.StatusCode)

		msg := readEvent(t, stream)
		assert.Equal(t, "message", msg.name)
		assert.Contains(t, msg.data, `"id":1`)
		assert.Contains(t, msg.data, `crate_name`)
	})

	t.Run("sends nothing for notifications", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(mcp.NewSSEHandler(newServer(t)))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/sse")
		require.NoError(t, err)
		defer resp.Body.Close()
		stream := bufio.NewReader(resp.Body)
		endpoint := readEvent(t, stream)

		for _, body := range []string{
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			`{"jsonrpc":"2.0","id":"p","method":"ping"}`,
		} {
			post, err := http.Post(srv.URL+endpoint.data, "application/json", strings.NewReader(body))
			require.NoError(t, err)
			post.Body.Close()
			require.Equal(t, http.StatusAccepted, post.StatusCode)
		}

		msg := readEvent(t, stream)
		assert.Contains(t, msg.data, `"id":"p"`)
	})

	t.Run("rejects unknown session", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(mcp.NewSSEHandler(newServer(t)))
		defer srv.Close()

		post, err := http.Post(srv.URL+"/message?sessionId=missing", "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
		require.NoError(t, err)
		post.Body.Close()

		assert.Equal(t, http.StatusBadRequest, post.StatusCode)
	})

	t.Run("forgets session when client disconnects", func(t *testing.T) {
		t.Parallel()

		s := newServer(t)
		srv := httptest.NewServer(mcp.NewSSEHandler(s))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/sse")
		require.NoError(t, err)
		readEvent(t, bufio.NewReader(resp.Body))
		require.Equal(t, 1, s.Sessions())

		resp.Body.Close()

		require.Eventually(t, func() bool { return s.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}
