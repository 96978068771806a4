// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"strings"
)

// shellQuote returns s as a single shell token, safe to splice into a bash
// command line.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'`$\\!*?[]{}();<>|&~#=") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// runOnceScript renders the run-once.sh contents for a one-off session. The
// command is executed verbatim as a shell one-liner; an EXIT trap records
// the exit code to the log and writes the result document that
// reconciliation later folds into the session record.
func runOnceScript(command, logPath, resultPath, workingDir string) string {
	lines := []string{
		"#!/usr/bin/env bash",
		"set -uo pipefail",
		"LOG_PATH=" + shellQuote(logPath),
		"RESULT_PATH=" + shellQuote(resultPath),
		`START_TS=$(date -u +"%Y-%m-%dT%H:%M:%S.%3NZ")`,
		"cleanup() {",
		"  local exit_code=$?",
		"  trap - EXIT",
		`  local end_ts=$(date -u +"%Y-%m-%dT%H:%M:%S.%3NZ")`,
		`  printf "[vibestack] session exited with code %s at %s\n" "$exit_code" "$end_ts" >> "$LOG_PATH"`,
		`  printf '{"exit_code": %s, "started_at": "%s", "finished_at": "%s", "message": "session exited with code %s"}\n' "$exit_code" "$START_TS" "$end_ts" "$exit_code" > "$RESULT_PATH"`,
		`  exit "$exit_code"`,
		"}",
		"trap cleanup EXIT",
	}
	if workingDir != "" {
		lines = append(lines, fmt.Sprintf("cd %s || exit 1", shellQuote(workingDir)))
	}
	lines = append(lines, command)
	return strings.Join(lines, "\n") + "\n"
}

// writeRunOnceScript writes the script and clears any stale result document
// from a previous run under the same name.
func writeRunOnceScript(scriptPath, resultPath, command, logPath, workingDir string) error {
	if err := os.Remove(resultPath); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Path: resultPath, Err: err}
	}
	content := runOnceScript(command, logPath, resultPath, workingDir)
	if err := os.WriteFile(scriptPath, []byte(content), 0o755); err != nil {
		return &StorageError{Op: "write", Path: scriptPath, Err: err}
	}
	return nil
}
