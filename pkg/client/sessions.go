// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
	"strconv"
)

// SessionClient provides access to session lifecycle operations.
type SessionClient struct {
	c *Client
}

// CreateSessionRequest are the inputs for Create.
type CreateSessionRequest struct {
	Name        string   `json:"name"`
	Template    string   `json:"template,omitempty"`
	Command     *string  `json:"command,omitempty"`
	CommandArgs []string `json:"command_args,omitempty"`
	WorkingDir  string   `json:"working_dir,omitempty"`
	Description string   `json:"description,omitempty"`
	SessionRoot string   `json:"session_root,omitempty"`
}

func sessionRootQuery(sessionRoot string) string {
	if sessionRoot == "" {
		return ""
	}
	return "?session_root=" + url.QueryEscape(sessionRoot)
}

// List returns all known sessions.
func (sc *SessionClient) List(ctx context.Context, sessionRoot string) ([]SessionRecord, error) {
	data, err := sc.c.get(ctx, "/api/sessions"+sessionRootQuery(sessionRoot))
	if err != nil {
		return nil, err
	}
	var sessions []SessionRecord
	if err := decode(data, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Get returns one session by name.
func (sc *SessionClient) Get(ctx context.Context, name, sessionRoot string) (*SessionRecord, error) {
	data, err := sc.c.get(ctx, "/api/sessions/"+url.PathEscape(name)+sessionRootQuery(sessionRoot))
	if err != nil {
		return nil, err
	}
	var record SessionRecord
	if err := decode(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create creates a new session.
func (sc *SessionClient) Create(ctx context.Context, req CreateSessionRequest) (*SessionRecord, error) {
	data, err := sc.c.postJSON(ctx, "/api/sessions", req)
	if err != nil {
		return nil, err
	}
	var record SessionRecord
	if err := decode(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Kill terminates a session. The session's filesystem tree is preserved.
func (sc *SessionClient) Kill(ctx context.Context, name, sessionRoot string) error {
	_, err := sc.c.delete(ctx, "/api/sessions/"+url.PathEscape(name)+sessionRootQuery(sessionRoot))
	return err
}

type sendInputRequest struct {
	Text  string `json:"text"`
	Enter bool   `json:"enter"`
}

// SendInput injects text into a session's pane.
func (sc *SessionClient) SendInput(ctx context.Context, name, text string, enter bool) error {
	_, err := sc.c.postJSON(ctx, "/api/sessions/"+url.PathEscape(name)+"/input",
		sendInputRequest{Text: text, Enter: enter})
	return err
}

type tailResponse struct {
	Log string `json:"log"`
}

// TailLog returns the last lines of a session's console log.
func (sc *SessionClient) TailLog(ctx context.Context, name string, lines int) (string, error) {
	path := "/api/sessions/" + url.PathEscape(name) + "/log"
	if lines > 0 {
		path += "?lines=" + strconv.Itoa(lines)
	}
	data, err := sc.c.get(ctx, path)
	if err != nil {
		return "", err
	}
	var resp tailResponse
	if err := decode(data, &resp); err != nil {
		return "", err
	}
	return resp.Log, nil
}
