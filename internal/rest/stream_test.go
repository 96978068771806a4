// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func readUntil(t *testing.T, conn *websocket.Conn, want string) string {
	t.Helper()
	var collected string
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q, collected %q", want, collected)
		collected += string(frame)
		if strings.Contains(collected, want) {
			return collected
		}
	}
}

func TestStreamLog_ReplaysAndFollows(t *testing.T) {
	server, _ := newTestServer(t)

	record := createSession(t, server, "streamed")
	logPath := record["log_path"].(string)
	require.NoError(t, os.WriteFile(logPath, []byte("hello from pane\n"), 0o644))

	// The upgrade must succeed through the wrapped Logging response writer.
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/api/sessions/streamed/log/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// The existing tail is replayed.
	readUntil(t, conn, "hello from pane")

	// Appended output follows.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("second line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	readUntil(t, conn, "second line")
}

func TestStreamLog_UnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "/api/sessions/ghost/log/ws"), nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
