// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	streamPollInterval = 500 * time.Millisecond
	streamBacklogBytes = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Permissive, matching the REST CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamLog handles GET /api/sessions/{name}/log/ws: a WebSocket that
// replays the tail of the console log and then follows appended output.
// Readers must tolerate partial final lines; frames are raw log bytes.
func (h *Handler) StreamLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	sessionRoot := r.URL.Query().Get("session_root")

	record, err := h.api.GetSession(r.Context(), name, sessionRoot)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain client frames so close handshakes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	file, err := os.Open(record.LogPath)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "log not available"))
		return
	}
	defer file.Close()

	// Start from a bounded backlog rather than the whole file.
	if info, err := file.Stat(); err == nil && info.Size() > streamBacklogBytes {
		file.Seek(info.Size()-streamBacklogBytes, io.SeekStart)
	}

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	buf := make([]byte, 4096)
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			for {
				n, err := file.Read(buf)
				if n > 0 {
					if werr := conn.WriteMessage(websocket.TextMessage, buf[:n]); werr != nil {
						return
					}
				}
				if err != nil {
					if err != io.EOF {
						log.Printf("log stream %s: %v", name, err)
						return
					}
					break
				}
			}
		}
	}
}
