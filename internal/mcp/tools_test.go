// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/check-the-vibe/vibestack/internal/api"
	"github.com/check-the-vibe/vibestack/internal/session"
	"github.com/check-the-vibe/vibestack/internal/settings"
)

type fakeExecutor struct {
	sessions map[string]bool
	sent     []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{sessions: make(map[string]bool)}
}

func (f *fakeExecutor) Exists(ctx context.Context, name string) bool { return f.sessions[name] }
func (f *fakeExecutor) NewDetached(ctx context.Context, name string) error {
	f.sessions[name] = true
	return nil
}
func (f *fakeExecutor) SetOption(ctx context.Context, name, key, value string) error      { return nil }
func (f *fakeExecutor) SetEnvironment(ctx context.Context, name, key, value string) error { return nil }
func (f *fakeExecutor) PipePane(ctx context.Context, target, fragment string) error       { return nil }
func (f *fakeExecutor) RespawnPane(ctx context.Context, target, command string) error     { return nil }
func (f *fakeExecutor) SendKeys(ctx context.Context, target, payload string, enter bool) error {
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeExecutor) Kill(ctx context.Context, name string) error {
	delete(f.sessions, name)
	return nil
}
func (f *fakeExecutor) CaptureRuntime(ctx context.Context, name string) (*session.Runtime, error) {
	return &session.Runtime{}, nil
}

func newTestMCP(t *testing.T) (*Server, *fakeExecutor) {
	t.Helper()
	root := t.TempDir()
	t.Setenv(settings.EnvSettingsDir, filepath.Join(root, "settings"))
	t.Setenv(settings.EnvPublicBaseURL, "https://vibe.example")
	tmux := newFakeExecutor()
	a := api.New(api.Options{
		SessionRoot:     filepath.Join(root, "sessions"),
		RepoRoot:        root,
		TemplateDir:     filepath.Join(root, "templates"),
		UserTemplateDir: filepath.Join(root, "user-templates"),
		AssetDir:        filepath.Join(root, "assets"),
		UserAssetDir:    filepath.Join(root, "user-assets"),
		Tmux:            tmux,
	})
	return NewServer(a), tmux
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestTools_CreateAndGetSession(t *testing.T) {
	server, tmux := newTestMCP(t)
	ctx := context.Background()

	result, err := server.handleCreateSession(ctx, toolRequest("create_session", map[string]any{
		"name":     "agent1",
		"template": "bash",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &record))
	assert.Equal(t, "agent1", record["name"])
	assert.Equal(t, "running", record["status"])
	assert.Equal(t, "https://vibe.example/ui/Sessions?session=agent1&template=bash", record["session_url"])
	assert.True(t, tmux.sessions["agent1"])

	got, err := server.handleGetSession(ctx, toolRequest("get_session", map[string]any{"name": "agent1"}))
	require.NoError(t, err)
	assert.False(t, got.IsError)
}

func TestTools_CreateSession_WithPrompt(t *testing.T) {
	server, tmux := newTestMCP(t)

	result, err := server.handleCreateSession(context.Background(), toolRequest("create_session", map[string]any{
		"name":     "prompted",
		"template": "bash",
		"prompt":   "explain this repo",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	// The prompt was delivered after creation (bash has no startup delay).
	require.NotEmpty(t, tmux.sent)
	assert.Equal(t, "explain this repo", tmux.sent[len(tmux.sent)-1])
}

func TestTools_CreateSession_PromptCancelledMidWait(t *testing.T) {
	server, tmux := newTestMCP(t)

	// codex carries a 3s startup delay; cancel while waiting.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := server.handleCreateSession(ctx, toolRequest("create_session", map[string]any{
		"name":     "cancelled",
		"template": "codex",
		"prompt":   "never delivered",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	// The session was still created and persisted.
	assert.True(t, tmux.sessions["cancelled"])
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &record))
	assert.Equal(t, "cancelled", record["name"])

	// But the prompt never reached the pane.
	for _, payload := range tmux.sent {
		assert.NotEqual(t, "never delivered", payload)
	}
}

func TestTools_GetSession_NotFound(t *testing.T) {
	server, _ := newTestMCP(t)

	result, err := server.handleGetSession(context.Background(),
		toolRequest("get_session", map[string]any{"name": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestTools_GetSessionURL_FollowBaseOverride(t *testing.T) {
	server, _ := newTestMCP(t)
	t.Setenv(settings.EnvFollowBase, "https://follow.example")

	_, err := server.handleCreateSession(context.Background(), toolRequest("create_session", map[string]any{
		"name":     "linked",
		"template": "bash",
	}))
	require.NoError(t, err)

	result, err := server.handleGetSessionURL(context.Background(),
		toolRequest("get_session_url", map[string]any{"name": "linked"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &body))
	assert.Equal(t, "https://follow.example/ui/Sessions?session=linked&template=bash", body["session_url"])
}

func TestTools_EnqueueOneOffAndJobs(t *testing.T) {
	server, _ := newTestMCP(t)
	ctx := context.Background()

	result, err := server.handleEnqueueOneOff(ctx, toolRequest("enqueue_one_off", map[string]any{
		"name":    "batch",
		"command": "make test",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	jobsResult, err := server.handleListJobs(ctx, toolRequest("list_jobs", nil))
	require.NoError(t, err)
	var jobs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, jobsResult)), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "batch", jobs[0]["session"])
}

func TestTools_SendInputAndTail(t *testing.T) {
	server, tmux := newTestMCP(t)
	ctx := context.Background()

	_, err := server.handleCreateSession(ctx, toolRequest("create_session", map[string]any{
		"name":     "io",
		"template": "bash",
	}))
	require.NoError(t, err)

	result, err := server.handleSendInput(ctx, toolRequest("send_input", map[string]any{
		"name": "io",
		"text": "echo ping",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "echo ping", tmux.sent[len(tmux.sent)-1])

	tail, err := server.handleTailLog(ctx, toolRequest("tail_log", map[string]any{"name": "io"}))
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent(t, tail)), &body))
	_, ok := body["log"]
	assert.True(t, ok)
}

func TestTools_TemplateLifecycle(t *testing.T) {
	server, _ := newTestMCP(t)
	ctx := context.Background()

	saveResult, err := server.handleSaveTemplate(ctx, toolRequest("save_template", map[string]any{
		"payload": map[string]any{"name": "frommcp", "label": "From MCP", "command": "true"},
	}))
	require.NoError(t, err)
	require.False(t, saveResult.IsError)

	listResult, err := server.handleListTemplates(ctx, toolRequest("list_templates", nil))
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent(t, listResult)), &list))
	found := false
	for _, tpl := range list {
		if tpl["name"] == "frommcp" {
			found = true
		}
	}
	assert.True(t, found)

	delResult, err := server.handleDeleteTemplate(ctx, toolRequest("delete_template", map[string]any{
		"name": "frommcp",
	}))
	require.NoError(t, err)
	assert.False(t, delResult.IsError)

	// Deleting a built-in surfaces a tool error, not a protocol error.
	builtinResult, err := server.handleDeleteTemplate(ctx, toolRequest("delete_template", map[string]any{
		"name": "bash",
	}))
	require.NoError(t, err)
	assert.True(t, builtinResult.IsError)
}
