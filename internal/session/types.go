// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"time"
)

// SchemaVersion is embedded in every persisted metadata document. Readers
// tolerate unknown trailing fields but reject unknown schema versions.
const SchemaVersion = 1

// TimeFormat is the wire format for all persisted timestamps: UTC ISO-8601
// with millisecond precision and a trailing Z.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Type distinguishes persistent shells from single-command jobs.
type Type string

const (
	TypeLongRunning Type = "long_running"
	TypeOneOff      Type = "one_off"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether s is a final state that reconciliation treats as
// a no-op.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// Metadata is the persisted record for a session. The Runtime field is
// recomputed from the live tmux server on every read and never written to
// disk.
type Metadata struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Command       string `json:"command"`
	Template      string `json:"template"`
	SessionType   Type   `json:"session_type"`
	Status        Status `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	LogPath       string `json:"log_path"`
	WorkspacePath string `json:"workspace_path"`
	Description   string `json:"description,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	ExitCode      *int   `json:"exit_code,omitempty"`
	LastMessage   string `json:"last_message,omitempty"`

	Runtime *Runtime `json:"-"`
}

// Touch bumps the updated_at timestamp.
func (m *Metadata) Touch() {
	m.UpdatedAt = Now()
}

// Runtime holds the non-persisted state captured from the live tmux session.
type Runtime struct {
	ActivePaneID        string   `json:"active_pane_id,omitempty"`
	PaneCurrentCommand  string   `json:"pane_current_command,omitempty"`
	PaneCurrentPath     string   `json:"pane_current_path,omitempty"`
	ClientLastActivity  string   `json:"client_last_activity,omitempty"`
	SessionLastAttached string   `json:"session_last_attached,omitempty"`
	SessionAttached     *bool    `json:"session_attached,omitempty"`
	Panes               []Pane   `json:"tmux_panes,omitempty"`
	Clients             []Client `json:"tmux_clients,omitempty"`
}

// Pane describes a tmux pane inside a session.
type Pane struct {
	ID             string `json:"pane_id"`
	Index          int    `json:"pane_index"`
	Active         bool   `json:"active"`
	CurrentCommand string `json:"pane_current_command,omitempty"`
	CurrentPath    string `json:"pane_current_path,omitempty"`
}

// Client describes a tmux client attached to a session.
type Client struct {
	TTY               string `json:"client_tty,omitempty"`
	LastActivityEpoch int64  `json:"client_last_activity_epoch,omitempty"`
	LastActivity      string `json:"client_last_activity,omitempty"`
	Width             int    `json:"client_width,omitempty"`
	Height            int    `json:"client_height,omitempty"`
}

// Job is one entry in the queue.json ledger. A session holds at most one
// ledger entry; terminal status updates are applied in place.
type Job struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Template  string `json:"template"`
	Command   string `json:"command"`
	Status    Status `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Message   string `json:"message,omitempty"`
}

// Now returns the current UTC time in the persisted wire format.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// epochToISO converts a unix epoch to the wire format. Zero and negative
// epochs are unknown and map to the empty string.
func epochToISO(epoch int64) string {
	if epoch <= 0 {
		return ""
	}
	return time.Unix(epoch, 0).UTC().Format(TimeFormat)
}

// Executor executes tmux commands. Every call is synchronous; failures are
// reported as *MuxError.
type Executor interface {
	// Exists checks if a tmux session exists.
	Exists(ctx context.Context, name string) bool
	// NewDetached creates a detached session running a login shell.
	NewDetached(ctx context.Context, name string) error
	// SetOption sets a session-scoped tmux option.
	SetOption(ctx context.Context, name, key, value string) error
	// SetEnvironment sets an environment variable in a session.
	SetEnvironment(ctx context.Context, name, key, value string) error
	// PipePane attaches an output-capture pipeline to the pane.
	PipePane(ctx context.Context, target, shellFragment string) error
	// RespawnPane replaces the pane with a fresh process running command.
	RespawnPane(ctx context.Context, target, command string) error
	// SendKeys injects text into the pane; pressEnter appends a carriage
	// return to the payload.
	SendKeys(ctx context.Context, target, payload string, pressEnter bool) error
	// Kill terminates a session.
	Kill(ctx context.Context, name string) error
	// CaptureRuntime collects pane, client and attachment state.
	CaptureRuntime(ctx context.Context, name string) (*Runtime, error)
}
