// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/check-the-vibe/vibestack/internal/templates"
)

// reconcileConcurrency bounds the parallel tmux probes during a list sweep.
const reconcileConcurrency = 8

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Manager orchestrates the session lifecycle: it is the single writer to
// session records and the only component that talks to tmux.
type Manager struct {
	store     *Store
	templates *templates.Resolver
	tmux      Executor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given store, template resolver and
// tmux executor.
func NewManager(store *Store, resolver *templates.Resolver, tmux Executor) *Manager {
	return &Manager{
		store:     store,
		templates: resolver,
		tmux:      tmux,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Store exposes the backing store to surface adapters.
func (m *Manager) Store() *Store { return m.store }

// Templates exposes the template resolver to surface adapters.
func (m *Manager) Templates() *templates.Resolver { return m.templates }

// lockFor returns the mutex serializing mutations of a single session.
func (m *Manager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[name] = lock
	}
	return lock
}

// CreateOptions are the inputs for Create. A nil Command means "use the
// template's command"; an empty non-nil Command forces an idle shell.
type CreateOptions struct {
	Name        string
	Template    string
	Command     *string
	CommandArgs []string
	SessionType Type
	Description string
	WorkingDir  string
	Env         map[string]string
}

// Create launches a new tmux-backed session and persists its record. On
// launch failure the session directory and ledger entry are rolled back.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Metadata, error) {
	if opts.Name == "" {
		return nil, &ValidationError{Msg: "session name is required"}
	}
	if !namePattern.MatchString(opts.Name) {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid session name '%s'", opts.Name)}
	}
	templateName := opts.Template
	if templateName == "" {
		templateName = "bash"
	}

	lock := m.lockFor(opts.Name)
	lock.Lock()
	defer lock.Unlock()

	// A stale directory without a live tmux session still counts as taken.
	if m.tmux.Exists(ctx, opts.Name) || m.store.Exists(opts.Name) {
		return nil, &AlreadyExistsError{Name: opts.Name}
	}

	tpl, ok := m.templates.Get(templateName)
	if !ok {
		tpl = &templates.Template{Name: templateName, Label: templateName}
	}

	command := tpl.Command
	if opts.Command != nil {
		command = *opts.Command
	}
	if len(opts.CommandArgs) > 0 {
		parts := make([]string, 0, len(opts.CommandArgs)+1)
		if strings.TrimSpace(command) != "" {
			parts = append(parts, strings.TrimRight(command, " "))
		}
		for _, arg := range opts.CommandArgs {
			parts = append(parts, shellQuote(arg))
		}
		command = strings.Join(parts, " ")
	}

	sessionType := opts.SessionType
	if sessionType == "" {
		sessionType = Type(tpl.SessionType)
	}
	if sessionType != TypeOneOff && sessionType != TypeLongRunning {
		sessionType = TypeLongRunning
	}

	description := opts.Description
	if description == "" {
		description = tpl.Description
	}

	env := make(map[string]string, len(tpl.Env)+len(opts.Env))
	for k, v := range tpl.Env {
		env[k] = v
	}
	for k, v := range opts.Env {
		env[k] = v
	}

	now := Now()
	metadata := &Metadata{
		SchemaVersion: SchemaVersion,
		Name:          opts.Name,
		Command:       command,
		Template:      templateName,
		SessionType:   sessionType,
		Status:        StatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
		LogPath:       m.store.LogPath(opts.Name),
		WorkspacePath: m.store.WorkspacePath(opts.Name),
		Description:   description,
	}

	if err := m.store.EnsurePaths(metadata); err != nil {
		m.cleanupFailedCreate(opts.Name, "")
		return nil, err
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = tpl.WorkingDir
	}
	if workingDir == "" {
		workingDir = metadata.WorkspacePath
	}

	if err := m.templates.MaterializeIncludes(tpl, metadata.WorkspacePath); err != nil {
		m.cleanupFailedCreate(opts.Name, "")
		return nil, err
	}

	job := Job{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Session:   opts.Name,
		Template:  templateName,
		Command:   command,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.AddJob(job); err != nil {
		m.cleanupFailedCreate(opts.Name, "")
		return nil, err
	}
	metadata.JobID = job.ID
	if err := m.store.Save(metadata); err != nil {
		m.cleanupFailedCreate(opts.Name, job.ID)
		return nil, err
	}

	if err := m.launch(ctx, metadata, workingDir, env); err != nil {
		m.cleanupFailedCreate(opts.Name, job.ID)
		return nil, err
	}

	if err := m.store.UpdateJob(job.ID, StatusRunning, ""); err != nil {
		log.Printf("session %s: update job: %v", opts.Name, err)
	}
	metadata.Status = StatusRunning
	metadata.Touch()
	if err := m.store.Save(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// launch drives tmux: detached session, status line off, pipe-pane capture,
// then either the one-off respawn or the interactive send-keys sequence.
// pipe-pane is attached before respawn-pane so the log covers the entire
// process lifetime.
func (m *Manager) launch(ctx context.Context, metadata *Metadata, workingDir string, env map[string]string) error {
	name := metadata.Name
	target := name + ":0.0"

	if err := m.tmux.NewDetached(ctx, name); err != nil {
		return err
	}
	if err := m.tmux.SetOption(ctx, name, "status", "off"); err != nil {
		return err
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.tmux.SetEnvironment(ctx, name, k, env[k]); err != nil {
			return err
		}
	}

	if err := m.tmux.PipePane(ctx, target, "cat >> "+shellQuote(metadata.LogPath)); err != nil {
		return err
	}

	if metadata.SessionType == TypeOneOff {
		scriptPath := m.store.ScriptPath(name)
		err := writeRunOnceScript(scriptPath, m.store.ResultPath(name), metadata.Command, metadata.LogPath, workingDir)
		if err != nil {
			return err
		}
		return m.tmux.RespawnPane(ctx, target, "exec "+shellQuote(scriptPath))
	}

	if workingDir != "" {
		if err := m.tmux.SendKeys(ctx, target, "cd "+shellQuote(workingDir), true); err != nil {
			return err
		}
	}
	if strings.TrimSpace(metadata.Command) != "" {
		if err := m.tmux.SendKeys(ctx, target, metadata.Command, true); err != nil {
			return err
		}
	}
	return nil
}

// cleanupFailedCreate rolls back the partial state of a failed Create.
func (m *Manager) cleanupFailedCreate(name, jobID string) {
	if err := m.store.Delete(name); err != nil {
		log.Printf("session %s: cleanup: %v", name, err)
	}
	if jobID != "" {
		if err := m.store.RemoveJob(jobID); err != nil {
			log.Printf("session %s: cleanup job: %v", name, err)
		}
	}
}

// EnqueueOneOff creates a one-off session that runs a single command to
// completion.
func (m *Manager) EnqueueOneOff(ctx context.Context, name, command string, opts CreateOptions) (*Metadata, error) {
	if strings.TrimSpace(command) == "" {
		return nil, &ValidationError{Msg: "command is required"}
	}
	opts.Name = name
	opts.Command = &command
	opts.SessionType = TypeOneOff
	if opts.Template == "" {
		opts.Template = "script"
	}
	return m.Create(ctx, opts)
}

// List returns all persisted sessions with reconciled status and fresh
// runtime state.
func (m *Manager) List(ctx context.Context) ([]*Metadata, error) {
	sessions, err := m.store.List()
	if err != nil {
		return nil, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, metadata := range sessions {
		metadata := metadata
		g.Go(func() error {
			m.reconcile(ctx, metadata)
			return nil
		})
	}
	g.Wait()
	return sessions, nil
}

// Get returns one session with reconciled status and fresh runtime state.
func (m *Manager) Get(ctx context.Context, name string) (*Metadata, error) {
	metadata, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if metadata == nil {
		return nil, &NotFoundError{Name: name}
	}
	m.reconcile(ctx, metadata)
	return metadata, nil
}

// SendText injects text into a session's pane. Empty payloads with no enter
// key are a no-op.
func (m *Manager) SendText(ctx context.Context, name, text string, enter bool) error {
	if text == "" && !enter {
		return nil
	}
	return m.tmux.SendKeys(ctx, name+":0.0", text, enter)
}

// Kill terminates a session's tmux process and marks the record stopped.
// Killing a session that is not alive is a no-op. The session's filesystem
// tree is preserved.
func (m *Manager) Kill(ctx context.Context, name string) error {
	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if !m.tmux.Exists(ctx, name) {
		return nil
	}
	if err := m.tmux.Kill(ctx, name); err != nil {
		return err
	}
	metadata, err := m.store.Load(name)
	if err != nil || metadata == nil {
		return err
	}
	metadata.Status = StatusStopped
	metadata.Touch()
	if err := m.store.Save(metadata); err != nil {
		return err
	}
	if err := m.store.UpdateJob(metadata.JobID, StatusStopped, ""); err != nil {
		log.Printf("session %s: update job: %v", name, err)
	}
	return nil
}

// TailLog returns the last lines of a session's console log.
func (m *Manager) TailLog(name string, lines int) (string, error) {
	metadata, err := m.store.Load(name)
	if err != nil {
		return "", err
	}
	if metadata == nil {
		return "", &NotFoundError{Name: name}
	}
	return m.store.Tail(metadata.LogPath, lines)
}

// ListJobs returns the job ledger.
func (m *Manager) ListJobs() ([]Job, error) {
	return m.store.ListJobs()
}

// runResult is the document the run-once script writes on exit.
type runResult struct {
	ExitCode   *int   `json:"exit_code"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Message    string `json:"message"`
}

// reconcile folds live tmux state into a session record. This runs on every
// read path and is the sole mechanism that advances sessions out of running
// states. Failures degrade gracefully: the record keeps its previous state
// and the error is logged.
func (m *Manager) reconcile(ctx context.Context, metadata *Metadata) {
	lock := m.lockFor(metadata.Name)
	lock.Lock()
	defer lock.Unlock()

	metadata.Runtime = nil

	if m.tmux.Exists(ctx, metadata.Name) {
		runtime, err := m.tmux.CaptureRuntime(ctx, metadata.Name)
		if err != nil {
			log.Printf("session %s: capture runtime: %v", metadata.Name, err)
		} else {
			metadata.Runtime = runtime
		}
		if metadata.Status != StatusRunning && metadata.Status != StatusStarting {
			metadata.Status = StatusRunning
			metadata.Touch()
			m.persistReconciled(metadata, StatusRunning, "")
		}
		return
	}

	if metadata.SessionType == TypeOneOff {
		m.reconcileOneOff(metadata)
		return
	}

	if metadata.Status != StatusStopped {
		metadata.Status = StatusStopped
		metadata.Touch()
		m.persistReconciled(metadata, StatusStopped, "")
	}
}

// reconcileOneOff applies the result document of a finished one-off run, or
// falls back to an optimistic completed state when the pane is gone and no
// result was written.
func (m *Manager) reconcileOneOff(metadata *Metadata) {
	result := m.readRunResult(metadata.Name)
	if result != nil && result.ExitCode != nil {
		code := *result.ExitCode
		status := StatusCompleted
		if code != 0 {
			status = StatusFailed
		}
		message := result.Message
		if message == "" {
			message = fmt.Sprintf("session exited with code %d", code)
		}
		applied := metadata.Status == status &&
			metadata.ExitCode != nil && *metadata.ExitCode == code &&
			metadata.LastMessage == message
		if applied {
			return
		}
		metadata.ExitCode = &code
		metadata.Status = status
		metadata.LastMessage = message
		if result.FinishedAt != "" {
			metadata.UpdatedAt = result.FinishedAt
		} else {
			metadata.Touch()
		}
		m.persistReconciled(metadata, status, message)
		return
	}

	// Pane gone with no result file: treated as a normal exit.
	if metadata.Status != StatusCompleted && metadata.Status != StatusFailed {
		metadata.Status = StatusCompleted
		metadata.Touch()
		m.persistReconciled(metadata, StatusCompleted, "")
	}
}

// readRunResult parses result.json, returning nil when absent or malformed.
func (m *Manager) readRunResult(name string) *runResult {
	data, err := os.ReadFile(m.store.ResultPath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("session %s: read result: %v", name, err)
		}
		return nil
	}
	var result runResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("session %s: parse result: %v", name, err)
		return nil
	}
	return &result
}

// persistReconciled saves a reconciled record and mirrors the status into
// the job ledger, logging rather than raising failures.
func (m *Manager) persistReconciled(metadata *Metadata, status Status, message string) {
	if err := m.store.Save(metadata); err != nil {
		log.Printf("session %s: save: %v", metadata.Name, err)
		return
	}
	if metadata.JobID == "" {
		return
	}
	if err := m.store.UpdateJob(metadata.JobID, status, message); err != nil {
		log.Printf("session %s: update job: %v", metadata.Name, err)
	}
}
