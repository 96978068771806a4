// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaneList(t *testing.T) {
	output := "%0\t0\t1\tbash\t/home/vibe\n%1\t1\t0\tvim\t/tmp"
	panes := parsePaneList(output)
	require.Len(t, panes, 2)

	assert.Equal(t, "%0", panes[0].ID)
	assert.Equal(t, 0, panes[0].Index)
	assert.True(t, panes[0].Active)
	assert.Equal(t, "bash", panes[0].CurrentCommand)
	assert.Equal(t, "/home/vibe", panes[0].CurrentPath)

	assert.Equal(t, "%1", panes[1].ID)
	assert.False(t, panes[1].Active)
}

func TestParsePaneList_SkipsMalformedLines(t *testing.T) {
	output := "%0\t0\t1\tbash\t/home\nnot-a-pane-line\n"
	panes := parsePaneList(output)
	assert.Len(t, panes, 1)
}

func TestParseClientList(t *testing.T) {
	output := "/dev/pts/1\t1700000000\t120\t40\n/dev/pts/2\t1700000500\t80\t24"
	clients, latest := parseClientList(output)
	require.Len(t, clients, 2)

	assert.Equal(t, "/dev/pts/1", clients[0].TTY)
	assert.Equal(t, int64(1700000000), clients[0].LastActivityEpoch)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", clients[0].LastActivity)
	assert.Equal(t, 120, clients[0].Width)
	assert.Equal(t, 40, clients[0].Height)

	assert.Equal(t, int64(1700000500), latest)
}

func TestParseClientList_ShortLine(t *testing.T) {
	clients, latest := parseClientList("/dev/pts/3\n")
	require.Len(t, clients, 1)
	assert.Equal(t, "/dev/pts/3", clients[0].TTY)
	assert.Zero(t, clients[0].LastActivityEpoch)
	assert.Empty(t, clients[0].LastActivity)
	assert.Zero(t, latest)
}

func TestEpochToISO(t *testing.T) {
	tests := []struct {
		epoch    int64
		expected string
	}{
		{1700000000, "2023-11-14T22:13:20.000Z"},
		{0, ""},
		{-5, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.epoch), func(t *testing.T) {
			assert.Equal(t, tt.expected, epochToISO(tt.epoch))
		})
	}
}

// MockExecutor records tmux interactions for testing.
type MockExecutor struct {
	mu sync.Mutex

	Sessions map[string]bool
	Runtime  map[string]*Runtime

	Calls []string // ordered subcommand log

	NewDetachedErr error
	SendKeysErr    error
	KillErr        error

	SentKeys []string
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Sessions: make(map[string]bool),
		Runtime:  make(map[string]*Runtime),
	}
}

func (m *MockExecutor) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockExecutor) Exists(ctx context.Context, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sessions[name]
}

func (m *MockExecutor) NewDetached(ctx context.Context, name string) error {
	m.record("new-session")
	if m.NewDetachedErr != nil {
		return m.NewDetachedErr
	}
	m.mu.Lock()
	m.Sessions[name] = true
	m.mu.Unlock()
	return nil
}

func (m *MockExecutor) SetOption(ctx context.Context, name, key, value string) error {
	m.record("set-option")
	return nil
}

func (m *MockExecutor) SetEnvironment(ctx context.Context, name, key, value string) error {
	m.record("set-environment " + key + "=" + value)
	return nil
}

func (m *MockExecutor) PipePane(ctx context.Context, target, shellFragment string) error {
	m.record("pipe-pane")
	return nil
}

func (m *MockExecutor) RespawnPane(ctx context.Context, target, command string) error {
	m.record("respawn-pane " + command)
	return nil
}

func (m *MockExecutor) SendKeys(ctx context.Context, target, payload string, pressEnter bool) error {
	m.record("send-keys")
	if m.SendKeysErr != nil {
		return m.SendKeysErr
	}
	if pressEnter {
		payload += "\r"
	}
	m.mu.Lock()
	m.SentKeys = append(m.SentKeys, payload)
	m.mu.Unlock()
	return nil
}

func (m *MockExecutor) Kill(ctx context.Context, name string) error {
	m.record("kill-session")
	if m.KillErr != nil {
		return m.KillErr
	}
	m.mu.Lock()
	delete(m.Sessions, name)
	m.mu.Unlock()
	return nil
}

func (m *MockExecutor) CaptureRuntime(ctx context.Context, name string) (*Runtime, error) {
	m.record("capture-runtime")
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.Runtime[name]; ok {
		return rt, nil
	}
	return &Runtime{}, nil
}
