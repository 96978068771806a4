// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// SessionRecord is a session as returned by the API: the persisted record
// plus runtime fields captured from the live tmux server.
type SessionRecord struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`
	Command       string `json:"command"`
	Template      string `json:"template"`
	SessionType   string `json:"session_type"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	LogPath       string `json:"log_path"`
	WorkspacePath string `json:"workspace_path"`
	Description   string `json:"description,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	ExitCode      *int   `json:"exit_code,omitempty"`
	LastMessage   string `json:"last_message,omitempty"`
	SessionURL    string `json:"session_url,omitempty"`

	ActivePaneID        string         `json:"active_pane_id,omitempty"`
	PaneCurrentCommand  string         `json:"pane_current_command,omitempty"`
	PaneCurrentPath     string         `json:"pane_current_path,omitempty"`
	ClientLastActivity  string         `json:"client_last_activity,omitempty"`
	SessionLastAttached string         `json:"session_last_attached,omitempty"`
	SessionAttached     *bool          `json:"session_attached,omitempty"`
	Panes               []PaneRecord   `json:"tmux_panes,omitempty"`
	Clients             []ClientRecord `json:"tmux_clients,omitempty"`
}

// PaneRecord describes a tmux pane inside a session.
type PaneRecord struct {
	ID             string `json:"pane_id"`
	Index          int    `json:"pane_index"`
	Active         bool   `json:"active"`
	CurrentCommand string `json:"pane_current_command,omitempty"`
	CurrentPath    string `json:"pane_current_path,omitempty"`
}

// ClientRecord describes a tmux client attached to a session.
type ClientRecord struct {
	TTY               string `json:"client_tty,omitempty"`
	LastActivityEpoch int64  `json:"client_last_activity_epoch,omitempty"`
	LastActivity      string `json:"client_last_activity,omitempty"`
	Width             int    `json:"client_width,omitempty"`
	Height            int    `json:"client_height,omitempty"`
}

// JobRecord is one entry in the job ledger.
type JobRecord struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Template  string `json:"template"`
	Command   string `json:"command"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Message   string `json:"message,omitempty"`
}

// TemplateRecord is a template definition as returned by the API.
type TemplateRecord struct {
	Name          string            `json:"name"`
	Label         string            `json:"label"`
	Command       string            `json:"command"`
	SessionType   string            `json:"session_type,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	Description   string            `json:"description,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	IncludeFiles  []IncludeRecord   `json:"include_files,omitempty"`
	PromptDelayMS int               `json:"prompt_delay_ms,omitempty"`
	Source        string            `json:"source,omitempty"`
}

// IncludeRecord is one include-file entry of a template.
type IncludeRecord struct {
	Source string `json:"source"`
	Target string `json:"target"`
}
