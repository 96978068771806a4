// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// muxTimeout bounds every tmux invocation. Calls are short but blocking; a
// hung tmux server must not wedge request handlers.
const muxTimeout = 5 * time.Second

const (
	paneFormat   = "#{pane_id}\t#{pane_index}\t#{pane_active}\t#{pane_current_command}\t#{pane_current_path}"
	clientFormat = "#{client_tty}\t#{client_last_activity}\t#{client_width}\t#{client_height}"
)

// RealExecutor executes real tmux commands.
type RealExecutor struct{}

// NewRealExecutor creates a new tmux executor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// Exists checks if a session exists.
func (e *RealExecutor) Exists(ctx context.Context, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", name)
	return cmd.Run() == nil
}

// NewDetached creates a detached session running a login shell.
func (e *RealExecutor) NewDetached(ctx context.Context, name string) error {
	return e.run(ctx, "new-session", "-d", "-s", name, "bash", "--login")
}

// SetOption sets a session-scoped tmux option.
func (e *RealExecutor) SetOption(ctx context.Context, name, key, value string) error {
	return e.run(ctx, "set-option", "-t", name, key, value)
}

// SetEnvironment sets an environment variable in a session, picked up by
// processes started in the session afterwards.
func (e *RealExecutor) SetEnvironment(ctx context.Context, name, key, value string) error {
	return e.run(ctx, "set-environment", "-t", name, key, value)
}

// PipePane attaches an output-capture pipeline that tees pane output into
// the log file. The -o flag toggles the pipe only when none is active.
func (e *RealExecutor) PipePane(ctx context.Context, target, shellFragment string) error {
	return e.run(ctx, "pipe-pane", "-t", target, "-o", shellFragment)
}

// RespawnPane replaces the pane with a fresh login shell running command, so
// that process exit terminates the session.
func (e *RealExecutor) RespawnPane(ctx context.Context, target, command string) error {
	return e.run(ctx, "respawn-pane", "-k", "-t", target, "bash", "--login", "-c", command)
}

// SendKeys injects text into the pane. When pressEnter is set, a terminating
// carriage return is sent as part of the payload.
func (e *RealExecutor) SendKeys(ctx context.Context, target, payload string, pressEnter bool) error {
	if pressEnter {
		payload += "\r"
	}
	return e.run(ctx, "send-keys", "-t", target, payload)
}

// Kill terminates a session.
func (e *RealExecutor) Kill(ctx context.Context, name string) error {
	return e.run(ctx, "kill-session", "-t", name)
}

// CaptureRuntime collects pane, client and attachment state for a session.
func (e *RealExecutor) CaptureRuntime(ctx context.Context, name string) (*Runtime, error) {
	runtime := &Runtime{}

	panesOut, err := e.capture(ctx, "list-panes", "-t", name, "-F", paneFormat)
	if err == nil {
		runtime.Panes = parsePaneList(panesOut)
	}
	for i := range runtime.Panes {
		if runtime.Panes[i].Active {
			runtime.ActivePaneID = runtime.Panes[i].ID
			runtime.PaneCurrentCommand = runtime.Panes[i].CurrentCommand
			runtime.PaneCurrentPath = runtime.Panes[i].CurrentPath
			break
		}
	}

	clientsOut, err := e.capture(ctx, "list-clients", "-t", name, "-F", clientFormat)
	var latestActivity int64
	if err == nil {
		runtime.Clients, latestActivity = parseClientList(clientsOut)
	}

	lastAttachedOut, err := e.capture(ctx, "display-message", "-t", name, "-p", "#{session_last_attached}")
	if err == nil {
		if epoch, perr := strconv.ParseInt(strings.TrimSpace(lastAttachedOut), 10, 64); perr == nil {
			runtime.SessionLastAttached = epochToISO(epoch)
		}
	}

	attachedOut, err := e.capture(ctx, "display-message", "-t", name, "-p", "#{session_attached}")
	if err == nil && strings.TrimSpace(attachedOut) != "" {
		attached := strings.TrimSpace(attachedOut) != "0"
		runtime.SessionAttached = &attached
	}

	if latestActivity > 0 {
		runtime.ClientLastActivity = epochToISO(latestActivity)
	} else if runtime.SessionLastAttached != "" {
		runtime.ClientLastActivity = runtime.SessionLastAttached
	}

	return runtime, nil
}

// run executes a tmux command, discarding stdout.
func (e *RealExecutor) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "tmux", args...)
	// Ensure we're not inside another tmux session
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyMuxError(ctx, args[0], stderr.String(), err)
	}
	return nil
}

// capture executes a tmux command and returns its trimmed stdout.
func (e *RealExecutor) capture(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	output, err := cmd.Output()
	if err != nil {
		return "", classifyMuxError(ctx, args[0], "", err)
	}
	return strings.TrimRight(string(output), "\n"), nil
}

// classifyMuxError maps a failed invocation onto the MuxError taxonomy.
func classifyMuxError(ctx context.Context, subcommand, stderr string, err error) *MuxError {
	kind := MuxCommandFailed
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = MuxTimeout
	} else if errors.Is(err, exec.ErrNotFound) {
		kind = MuxNotInstalled
	}
	if stderr != "" {
		err = fmt.Errorf("%s: %w", strings.TrimSpace(stderr), err)
	}
	return &MuxError{Kind: kind, Cmd: subcommand, Err: err}
}

// filterTMUXEnv filters out the TMUX environment variable.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}

// parsePaneList parses tmux list-panes output produced with paneFormat.
func parsePaneList(output string) []Pane {
	var panes []Pane
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 5 {
			continue
		}
		index, _ := strconv.Atoi(parts[1])
		panes = append(panes, Pane{
			ID:             parts[0],
			Index:          index,
			Active:         parts[2] == "1",
			CurrentCommand: parts[3],
			CurrentPath:    parts[4],
		})
	}
	return panes
}

// parseClientList parses tmux list-clients output produced with
// clientFormat, returning the clients and the newest activity epoch.
func parseClientList(output string) ([]Client, int64) {
	var clients []Client
	var latest int64
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		epoch, _ := strconv.ParseInt(parts[1], 10, 64)
		width, _ := strconv.Atoi(parts[2])
		height, _ := strconv.Atoi(parts[3])
		clients = append(clients, Client{
			TTY:               parts[0],
			LastActivityEpoch: epoch,
			LastActivity:      epochToISO(epoch),
			Width:             width,
			Height:            height,
		})
		if epoch > latest {
			latest = epoch
		}
	}
	return clients, latest
}
