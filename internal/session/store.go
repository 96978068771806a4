// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Store owns the on-disk session tree:
//
//	sessions_root/
//	  queue.json           job ledger
//	  <name>/metadata.json session record
//	  <name>/console.log   captured pane output
//	  <name>/artifacts/    workspace
//	  <name>/run-once.sh   one-off sessions only
//	  <name>/result.json   one-off sessions, after termination
type Store struct {
	root string
}

// NewStore creates the session root and the empty job ledger if missing.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: root, Err: err}
	}
	s := &Store{root: root}
	if _, err := os.Stat(s.QueuePath()); os.IsNotExist(err) {
		if err := writeJSONFile(s.QueuePath(), queueDocument{Jobs: []Job{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Root returns the sessions root directory.
func (s *Store) Root() string { return s.root }

// SessionDir returns the directory holding a session's artifacts.
func (s *Store) SessionDir(name string) string { return filepath.Join(s.root, name) }

// MetadataPath returns the path of a session's metadata document.
func (s *Store) MetadataPath(name string) string {
	return filepath.Join(s.SessionDir(name), "metadata.json")
}

// LogPath returns the path of a session's captured console log.
func (s *Store) LogPath(name string) string {
	return filepath.Join(s.SessionDir(name), "console.log")
}

// WorkspacePath returns a session's workspace directory.
func (s *Store) WorkspacePath(name string) string {
	return filepath.Join(s.SessionDir(name), "artifacts")
}

// ScriptPath returns the run-once script path for one-off sessions.
func (s *Store) ScriptPath(name string) string {
	return filepath.Join(s.SessionDir(name), "run-once.sh")
}

// ResultPath returns the one-off result document path.
func (s *Store) ResultPath(name string) string {
	return filepath.Join(s.SessionDir(name), "result.json")
}

// QueuePath returns the job ledger path.
func (s *Store) QueuePath() string { return filepath.Join(s.root, "queue.json") }

// List enumerates all persisted sessions sorted by name. Entries that fail
// to parse are skipped.
func (s *Store) List() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &StorageError{Op: "readdir", Path: s.root, Err: err}
	}
	var sessions []*Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := s.Load(entry.Name())
		if err != nil || metadata == nil {
			continue
		}
		sessions = append(sessions, metadata)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	return sessions, nil
}

// Load reads a session record. Returns nil without error when no metadata
// file exists for the name.
func (s *Store) Load(name string) (*Metadata, error) {
	path := s.MetadataPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, &StorageError{Op: "parse", Path: path, Err: err}
	}
	if metadata.SchemaVersion != SchemaVersion {
		return nil, &StorageError{
			Op:   "parse",
			Path: path,
			Err:  fmt.Errorf("unsupported schema_version %d", metadata.SchemaVersion),
		}
	}
	return &metadata, nil
}

// Exists reports whether a metadata file is present for name, even when the
// record itself no longer parses.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.MetadataPath(name))
	return err == nil
}

// Save writes a session record crash-safely: temp sibling, fsync, rename.
func (s *Store) Save(metadata *Metadata) error {
	metadata.SchemaVersion = SchemaVersion
	if err := s.EnsurePaths(metadata); err != nil {
		return err
	}
	return writeJSONFile(s.MetadataPath(metadata.Name), metadata)
}

// EnsurePaths creates the workspace directory and touches the log file.
func (s *Store) EnsurePaths(metadata *Metadata) error {
	if err := os.MkdirAll(metadata.WorkspacePath, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: metadata.WorkspacePath, Err: err}
	}
	f, err := os.OpenFile(metadata.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "create", Path: metadata.LogPath, Err: err}
	}
	return f.Close()
}

// Delete removes a session's directory tree.
func (s *Store) Delete(name string) error {
	dir := s.SessionDir(name)
	if err := os.RemoveAll(dir); err != nil {
		return &StorageError{Op: "remove", Path: dir, Err: err}
	}
	return nil
}

// Tail returns the last n lines of a UTF-8 file. Invalid byte sequences are
// replaced rather than rejected; a trailing partial line is returned as-is.
func (s *Store) Tail(path string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &StorageError{Op: "read", Path: path, Err: err}
	}
	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return "", nil
	}
	lines := strings.Split(text, "\n")
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

// writeJSONFile persists v as indented JSON with a trailing newline, via a
// fsynced temp sibling and an atomic rename.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &StorageError{Op: "marshal", Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &StorageError{Op: "fsync", Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
