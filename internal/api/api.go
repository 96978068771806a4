// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api is the process-wide handle the surface adapters (REST, MCP,
// CLI) call into. It memoises one manager per session root and enriches
// returned records with derived fields such as the session UI URL.
package api

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/check-the-vibe/vibestack/internal/session"
	"github.com/check-the-vibe/vibestack/internal/settings"
	"github.com/check-the-vibe/vibestack/internal/templates"
)

// Environment variables resolving the default directory layout.
const (
	EnvHome            = "VIBESTACK_HOME"
	EnvSessionRoot     = "VIBESTACK_SESSION_ROOT"
	EnvTemplateDir     = "VIBESTACK_TEMPLATE_DIR"
	EnvUserTemplateDir = "VIBESTACK_USER_TEMPLATE_DIR"
	EnvAssetDir        = "VIBESTACK_ASSET_DIR"
	EnvUserAssetDir    = "VIBESTACK_USER_ASSET_DIR"
)

// Options configures the API handle. Empty fields fall back to environment
// variables and the conventional layout under the user's home directory.
type Options struct {
	SessionRoot     string
	RepoRoot        string
	TemplateDir     string
	UserTemplateDir string
	AssetDir        string
	UserAssetDir    string

	// Tmux defaults to the real executor; tests inject fakes.
	Tmux session.Executor
}

// resolve fills empty fields from the environment.
func (o Options) resolve() Options {
	home, _ := os.UserHomeDir()
	if o.RepoRoot == "" {
		if o.RepoRoot = os.Getenv(EnvHome); o.RepoRoot == "" {
			o.RepoRoot, _ = os.Getwd()
		}
	}
	if o.SessionRoot == "" {
		if o.SessionRoot = os.Getenv(EnvSessionRoot); o.SessionRoot == "" {
			o.SessionRoot = filepath.Join(home, "sessions")
		}
	}
	if o.TemplateDir == "" {
		if o.TemplateDir = os.Getenv(EnvTemplateDir); o.TemplateDir == "" {
			o.TemplateDir = filepath.Join(o.RepoRoot, "vibestack", "templates")
		}
	}
	if o.UserTemplateDir == "" {
		if o.UserTemplateDir = os.Getenv(EnvUserTemplateDir); o.UserTemplateDir == "" {
			o.UserTemplateDir = filepath.Join(home, ".vibestack", "templates")
		}
	}
	if o.AssetDir == "" {
		if o.AssetDir = os.Getenv(EnvAssetDir); o.AssetDir == "" {
			o.AssetDir = filepath.Join(o.RepoRoot, "vibestack", "assets")
		}
	}
	if o.UserAssetDir == "" {
		if o.UserAssetDir = os.Getenv(EnvUserAssetDir); o.UserAssetDir == "" {
			o.UserAssetDir = filepath.Join(home, ".vibestack", "assets")
		}
	}
	if o.Tmux == nil {
		o.Tmux = session.NewRealExecutor()
	}
	return o
}

// API is the dependency-injected handle passed to the surface adapters.
// It is safe for concurrent use.
type API struct {
	opts Options

	mu       sync.Mutex
	managers map[string]*session.Manager
}

// New creates an API handle. The default manager is built lazily on first
// use so that a misconfigured root only fails the calls that touch it.
func New(opts Options) *API {
	return &API{
		opts:     opts.resolve(),
		managers: make(map[string]*session.Manager),
	}
}

// Manager returns the memoised manager for sessionRoot. An empty root means
// the configured default; any other value forces a scoped manager for that
// root, created on first use.
func (a *API) Manager(sessionRoot string) (*session.Manager, error) {
	root := sessionRoot
	if root == "" {
		root = a.opts.SessionRoot
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if mgr, ok := a.managers[root]; ok {
		return mgr, nil
	}

	store, err := session.NewStore(root)
	if err != nil {
		return nil, err
	}
	resolver, err := templates.NewResolver(templates.Dirs{
		TemplateDir:     a.opts.TemplateDir,
		UserTemplateDir: a.opts.UserTemplateDir,
		AssetDir:        a.opts.AssetDir,
		UserAssetDir:    a.opts.UserAssetDir,
		RepoRoot:        a.opts.RepoRoot,
	})
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(store, resolver, a.opts.Tmux)
	a.managers[root] = mgr
	return mgr, nil
}

// Record is a session record as returned to API consumers: the persisted
// metadata, the flattened runtime fields, and the derived session URL.
type Record struct {
	session.Metadata
	*session.Runtime
	SessionURL string `json:"session_url,omitempty"`
}

// NewRecord wraps metadata with its derived fields. baseOverride, when
// non-nil, takes precedence over the configured base URL.
func NewRecord(metadata *session.Metadata, baseOverride *string) *Record {
	return &Record{
		Metadata:   *metadata,
		Runtime:    metadata.Runtime,
		SessionURL: settings.BuildSessionUIURL(metadata.Name, metadata.Template, baseOverride),
	}
}

func (a *API) records(sessions []*session.Metadata) []*Record {
	result := make([]*Record, 0, len(sessions))
	for _, metadata := range sessions {
		result = append(result, NewRecord(metadata, nil))
	}
	return result
}

// ListSessions returns all sessions under the given root (empty = default).
func (a *API) ListSessions(ctx context.Context, sessionRoot string) ([]*Record, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return nil, err
	}
	sessions, err := mgr.List(ctx)
	if err != nil {
		return nil, err
	}
	return a.records(sessions), nil
}

// GetSession returns one session by name.
func (a *API) GetSession(ctx context.Context, name, sessionRoot string) (*Record, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return nil, err
	}
	metadata, err := mgr.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewRecord(metadata, nil), nil
}

// CreateSession creates a session and returns its enriched record.
func (a *API) CreateSession(ctx context.Context, opts session.CreateOptions, sessionRoot string) (*Record, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return nil, err
	}
	metadata, err := mgr.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewRecord(metadata, nil), nil
}

// EnqueueOneOff creates a one-off job session.
func (a *API) EnqueueOneOff(ctx context.Context, name, command string, opts session.CreateOptions, sessionRoot string) (*Record, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return nil, err
	}
	metadata, err := mgr.EnqueueOneOff(ctx, name, command, opts)
	if err != nil {
		return nil, err
	}
	return NewRecord(metadata, nil), nil
}

// SendText injects text into a session's pane.
func (a *API) SendText(ctx context.Context, name, text string, enter bool, sessionRoot string) error {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return err
	}
	return mgr.SendText(ctx, name, text, enter)
}

// KillSession terminates a session.
func (a *API) KillSession(ctx context.Context, name, sessionRoot string) error {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return err
	}
	return mgr.Kill(ctx, name)
}

// TailLog returns the last lines of a session's console log.
func (a *API) TailLog(ctx context.Context, name string, lines int, sessionRoot string) (string, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return "", err
	}
	return mgr.TailLog(name, lines)
}

// ListJobs returns the job ledger.
func (a *API) ListJobs(ctx context.Context, sessionRoot string) ([]session.Job, error) {
	mgr, err := a.Manager(sessionRoot)
	if err != nil {
		return nil, err
	}
	return mgr.ListJobs()
}

// ListTemplates returns all known templates.
func (a *API) ListTemplates() ([]*templates.Template, error) {
	mgr, err := a.Manager("")
	if err != nil {
		return nil, err
	}
	return mgr.Templates().List(), nil
}

// SaveTemplate persists a user template and returns the written path.
func (a *API) SaveTemplate(payload map[string]any, includeSources []string) (string, error) {
	mgr, err := a.Manager("")
	if err != nil {
		return "", err
	}
	return mgr.Templates().Save(payload, includeSources)
}

// DeleteTemplate removes a user template.
func (a *API) DeleteTemplate(name string) error {
	mgr, err := a.Manager("")
	if err != nil {
		return err
	}
	return mgr.Templates().Delete(name)
}

// Template returns one template by name.
func (a *API) Template(name string) (*templates.Template, bool) {
	mgr, err := a.Manager("")
	if err != nil {
		return nil, false
	}
	return mgr.Templates().Get(name)
}
