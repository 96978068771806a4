// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package templates loads and resolves session templates. Templates come
// from three layers: a built-in set compiled into the binary, JSON files in
// the built-in template directory, and JSON files in the user template
// directory. Later layers shadow earlier ones by name.
package templates

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// SourceBuiltin marks templates compiled into the binary. File-backed
// templates carry their path as the source instead.
const SourceBuiltin = "built-in"

// Error reports an invalid template operation, such as deleting a built-in.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Include is one workspace file materialized on session create. A bare
// string entry "path" normalizes to {source: path, target: basename(path)}.
type Include struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// UnmarshalJSON accepts both the bare-string and the object form.
func (i *Include) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		i.Source = bare
		i.Target = filepath.Base(bare)
		return nil
	}
	var pair struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("include entry must be a string or {source, target}: %w", err)
	}
	i.Source = pair.Source
	i.Target = pair.Target
	if i.Target == "" && i.Source != "" {
		i.Target = filepath.Base(i.Source)
	}
	return nil
}

// Template is a named recipe for creating sessions.
type Template struct {
	Name          string            `json:"name"`
	Label         string            `json:"label"`
	Command       string            `json:"command"`
	SessionType   string            `json:"session_type,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	Description   string            `json:"description,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	IncludeFiles  []Include         `json:"include_files,omitempty"`
	PromptDelayMS int               `json:"prompt_delay_ms,omitempty"`

	// Source is "built-in" or the backing file path. Not part of the file
	// payload; populated by the resolver.
	Source string `json:"source,omitempty"`
}

// builtins returns the compiled-in template set.
func builtins() []*Template {
	return []*Template{
		{
			Name:        "bash",
			Label:       "Bash shell",
			Command:     "",
			SessionType: "long_running",
			Source:      SourceBuiltin,
		},
		{
			Name:          "claude",
			Label:         "Claude CLI",
			Command:       "claude",
			SessionType:   "long_running",
			PromptDelayMS: 2500,
			IncludeFiles: []Include{
				{Source: "CLAUDE.md", Target: "CLAUDE.md"},
				{Source: "TASKS.md", Target: "TASKS.md"},
			},
			Source: SourceBuiltin,
		},
		{
			Name:          "codex",
			Label:         "Codex CLI",
			Command:       "codex",
			SessionType:   "long_running",
			PromptDelayMS: 3000,
			IncludeFiles: []Include{
				{Source: "AGENTS.md", Target: "AGENTS.md"},
				{Source: "TASKS.md", Target: "TASKS.md"},
			},
			Source: SourceBuiltin,
		},
		{
			Name:        "script",
			Label:       "One-off script",
			Command:     "bash --login",
			SessionType: "one_off",
			Source:      SourceBuiltin,
		},
	}
}
