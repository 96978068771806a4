// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the daemon configuration file.
package config

// Config is the daemon configuration.
type Config struct {
	Server   ServerConfig    `json:"server"`
	MCP      MCPConfig       `json:"mcp"`
	Paths    PathsConfig     `json:"paths"`
	Startup  []StartupConfig `json:"startup_sessions"`
}

// ServerConfig configures the REST listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// MCPConfig configures the MCP listener.
type MCPConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Enabled *bool  `json:"enabled"`
}

// PathsConfig overrides the directory layout. Empty fields fall back to
// environment variables and the conventional home-directory layout.
type PathsConfig struct {
	SessionRoot     string `json:"session_root"`
	RepoRoot        string `json:"repo_root"`
	TemplateDir     string `json:"template_dir"`
	UserTemplateDir string `json:"user_template_dir"`
	AssetDir        string `json:"asset_dir"`
	UserAssetDir    string `json:"user_asset_dir"`
}

// StartupConfig declares a session ensured at daemon boot.
type StartupConfig struct {
	Name        string   `json:"name"`
	Template    string   `json:"template"`
	Command     string   `json:"command"`
	CommandArgs []string `json:"command_args"`
	Description string   `json:"description"`
}

// MCPEnabled reports whether the MCP listener should start (default true).
func (c *Config) MCPEnabled() bool {
	return c.MCP.Enabled == nil || *c.MCP.Enabled
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.MCP.Port == 0 {
		cfg.MCP.Port = 9100
	}
	if cfg.MCP.Host == "" {
		cfg.MCP.Host = cfg.Server.Host
	}
}
