// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vibestack.hjson")
	content := `{
  // comments are allowed in hjson
  server: {
    port: 9999
  }
  paths: {
    session_root: /srv/sessions
  }
  startup_sessions: [
    {
      name: boot-shell
      template: bash
    }
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.MCP.Port)
	assert.Equal(t, "127.0.0.1", cfg.MCP.Host)
	assert.Equal(t, "/srv/sessions", cfg.Paths.SessionRoot)
	require.Len(t, cfg.Startup, 1)
	assert.Equal(t, "boot-shell", cfg.Startup[0].Name)
	assert.True(t, cfg.MCPEnabled())
}

func TestLoader_Default(t *testing.T) {
	cfg := NewLoader().Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.MCP.Port)
	assert.True(t, cfg.MCPEnabled())
}

func TestLoader_MCPDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vibestack.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{mcp: {enabled: false}}`), 0o644))

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, cfg.MCPEnabled())
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.hjson"))
	assert.Error(t, err)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	loader := NewLoader()
	_, err = loader.FindConfig()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "vibestack.json"), []byte("{}"), 0o644))
	found, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, found, "vibestack.json")
}
