// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the session orchestrator as MCP tools over the
// streamable-HTTP transport.
package mcp

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/check-the-vibe/vibestack/internal/api"
)

// Environment knobs for the MCP surface.
const (
	EnvName            = "VIBESTACK_MCP_NAME"
	EnvVersion         = "VIBESTACK_MCP_VERSION"
	EnvDefaultTemplate = "VIBESTACK_MCP_DEFAULT_TEMPLATE"
	EnvStateless       = "VIBESTACK_MCP_STATELESS"
)

const instructions = `VibeStack Session Manager - Control tmux-backed development sessions via MCP.

## Session Lifecycle
1. create_session(name, template, prompt) - Launch a CLI and optionally send an initial prompt
2. tail_log(name) - Monitor session output (last 200 lines by default)
3. send_input(name, text) - Send commands or follow-up messages
4. get_session_url(name) - Get a UI link for browser access
5. kill_session(name) - Terminate the session when done

## Prompt Handling
When creating sessions with 'prompt', delivery waits for the template's
startup delay before sending, so CLIs finish initializing first. Sessions
remain fully interactive after the initial prompt.

## Session Storage
Each session persists under the session root as <name>/ with metadata.json,
console.log, and artifacts/ (the workspace, seeded with template files).
Sessions persist until explicitly killed with kill_session.

## Best Practices
- Use descriptive session names (e.g. 'api-debug-20250101', not 'test')
- Check tail_log before sending follow-up commands
- For batch jobs, use enqueue_one_off instead of create_session`

// Server is the MCP server bound to the API layer.
type Server struct {
	api       *api.API
	mcpServer *server.MCPServer
	httpSrv   *server.StreamableHTTPServer
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// NewServer creates the MCP server and registers the tool set.
func NewServer(a *api.API) *Server {
	mcpServer := server.NewMCPServer(
		envOr(EnvName, "vibestack"),
		envOr(EnvVersion, "1.0.0"),
		server.WithInstructions(instructions),
		server.WithToolCapabilities(false),
	)

	s := &Server{
		api:       a,
		mcpServer: mcpServer,
	}
	s.registerTools()

	var opts []server.StreamableHTTPOption
	if envBool(EnvStateless) {
		opts = append(opts, server.WithStateLess(true))
	}
	s.httpSrv = server.NewStreamableHTTPServer(mcpServer, opts...)
	return s
}

// Start serves the streamable-HTTP transport on addr until Shutdown.
func (s *Server) Start(addr string) error {
	log.Printf("MCP server listening on http://%s/mcp", addr)
	return s.httpSrv.Start(addr)
}

// Shutdown gracefully stops the transport.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down MCP server...")
	return s.httpSrv.Shutdown(ctx)
}
