// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/check-the-vibe/vibestack/internal/api"
	"github.com/check-the-vibe/vibestack/internal/session"
	"github.com/check-the-vibe/vibestack/internal/settings"
	"github.com/check-the-vibe/vibestack/internal/templates"
)

// baseOverride returns the MCP-specific base URL override, if any.
func baseOverride() *string {
	if v, ok := os.LookupEnv(settings.EnvFollowBase); ok {
		return &v
	}
	return nil
}

// enrich rebuilds a record's session URL with the MCP base override applied.
func enrich(record *api.Record) *api.Record {
	record.SessionURL = settings.BuildSessionUIURL(record.Name, record.Template, baseOverride())
	return record
}

func asJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError maps core errors onto tool results: caller mistakes become tool
// errors the model can read and correct; infrastructure failures propagate
// as protocol errors.
func toolError(err error) (*mcp.CallToolResult, error) {
	var (
		validationErr *session.ValidationError
		existsErr     *session.AlreadyExistsError
		notFoundErr   *session.NotFoundError
		templateErr   *templates.Error
	)
	if errors.As(err, &validationErr) || errors.As(err, &existsErr) ||
		errors.As(err, &notFoundErr) || errors.As(err, &templateErr) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

func (s *Server) registerTools() {
	rootOpt := mcp.WithString("session_root",
		mcp.Description("Optional override for the session root directory."))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List known sessions."),
		rootOpt,
	), s.handleListSessions)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Fetch metadata for a session by name."),
		mcp.WithString("name", mcp.Required()),
		rootOpt,
	), s.handleGetSession)

	s.mcpServer.AddTool(mcp.NewTool("get_session_url",
		mcp.WithDescription("Return the UI URL for a session by name."),
		mcp.WithString("name", mcp.Required()),
		rootOpt,
	), s.handleGetSessionURL)

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new session. An optional prompt is sent after the template's startup delay."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("template"),
		mcp.WithString("command"),
		mcp.WithArray("command_args", mcp.Description("Arguments appended to the command."),
			mcp.WithStringItems()),
		mcp.WithString("working_dir"),
		mcp.WithString("description"),
		mcp.WithString("prompt"),
		rootOpt,
	), s.handleCreateSession)

	s.mcpServer.AddTool(mcp.NewTool("send_input",
		mcp.WithDescription("Send text to an existing session's terminal."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("text", mcp.Required()),
		mcp.WithBoolean("enter", mcp.Description("Press Enter after sending the payload."),
			mcp.DefaultBool(true)),
		rootOpt,
	), s.handleSendInput)

	s.mcpServer.AddTool(mcp.NewTool("tail_log",
		mcp.WithDescription("Retrieve the latest log output for a session."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithNumber("lines", mcp.DefaultNumber(200)),
		rootOpt,
	), s.handleTailLog)

	s.mcpServer.AddTool(mcp.NewTool("kill_session",
		mcp.WithDescription("Terminate a session if it is running."),
		mcp.WithString("name", mcp.Required()),
		rootOpt,
	), s.handleKillSession)

	s.mcpServer.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List the one-off job ledger."),
		rootOpt,
	), s.handleListJobs)

	s.mcpServer.AddTool(mcp.NewTool("enqueue_one_off",
		mcp.WithDescription("Queue a one-off command using the session manager."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("command", mcp.Required()),
		mcp.WithString("template", mcp.DefaultString("script")),
		mcp.WithString("description"),
		rootOpt,
	), s.handleEnqueueOneOff)

	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List available templates."),
	), s.handleListTemplates)

	s.mcpServer.AddTool(mcp.NewTool("save_template",
		mcp.WithDescription("Persist a template definition to disk."),
		mcp.WithObject("payload", mcp.Required()),
		mcp.WithArray("include_sources", mcp.WithStringItems()),
	), s.handleSaveTemplate)

	s.mcpServer.AddTool(mcp.NewTool("delete_template",
		mcp.WithDescription("Remove a user-provided template by name."),
		mcp.WithString("name", mcp.Required()),
	), s.handleDeleteTemplate)
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.api.ListSessions(ctx, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	for _, record := range records {
		enrich(record)
	}
	return asJSON(records)
}

func (s *Server) handleGetSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.api.GetSession(ctx, name, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	return asJSON(enrich(record))
}

func (s *Server) handleGetSessionURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.api.GetSession(ctx, name, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	return asJSON(map[string]string{"session_url": enrich(record).SessionURL})
}

func (s *Server) handleCreateSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	templateName := req.GetString("template", "")
	if templateName == "" {
		templateName = envOr(EnvDefaultTemplate, "codex")
	}
	sessionRoot := req.GetString("session_root", "")

	opts := session.CreateOptions{
		Name:        name,
		Template:    templateName,
		CommandArgs: req.GetStringSlice("command_args", nil),
		WorkingDir:  req.GetString("working_dir", ""),
		Description: req.GetString("description", ""),
	}
	if command := req.GetString("command", ""); command != "" {
		opts.Command = &command
	}

	record, err := s.api.CreateSession(ctx, opts, sessionRoot)
	if err != nil {
		return toolError(err)
	}

	// Creation is already durable; the prompt is best-effort. Cancellation
	// mid-wait returns the created session without delivering the prompt.
	if prompt := req.GetString("prompt", ""); prompt != "" {
		s.deliverPrompt(ctx, name, templateName, prompt, sessionRoot)
	}
	return asJSON(enrich(record))
}

// deliverPrompt waits the template's startup delay, then sends the prompt.
func (s *Server) deliverPrompt(ctx context.Context, name, templateName, prompt, sessionRoot string) bool {
	if tpl, ok := s.api.Template(templateName); ok && tpl.PromptDelayMS > 0 {
		select {
		case <-time.After(time.Duration(tpl.PromptDelayMS) * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}
	if err := s.api.SendText(ctx, name, prompt, true, sessionRoot); err != nil {
		return false
	}
	return true
}

func (s *Server) handleSendInput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	enter := req.GetBool("enter", true)
	if err := s.api.SendText(ctx, name, text, enter, req.GetString("session_root", "")); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("input queued"), nil
}

func (s *Server) handleTailLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := req.GetInt("lines", 200)
	output, err := s.api.TailLog(ctx, name, lines, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	return asJSON(map[string]string{"log": output})
}

func (s *Server) handleKillSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.api.KillSession(ctx, name, req.GetString("session_root", "")); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("session terminated"), nil
}

func (s *Server) handleListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.api.ListJobs(ctx, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	return asJSON(jobs)
}

func (s *Server) handleEnqueueOneOff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.api.EnqueueOneOff(ctx, name, command, session.CreateOptions{
		Template:    req.GetString("template", "script"),
		Description: req.GetString("description", ""),
	}, req.GetString("session_root", ""))
	if err != nil {
		return toolError(err)
	}
	return asJSON(enrich(record))
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.api.ListTemplates()
	if err != nil {
		return toolError(err)
	}
	return asJSON(list)
}

func (s *Server) handleSaveTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	payload, ok := args["payload"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("payload is required"), nil
	}
	var includeSources []string
	if raw, ok := args["include_sources"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				includeSources = append(includeSources, s)
			}
		}
	}
	path, err := s.api.SaveTemplate(payload, includeSources)
	if err != nil {
		return toolError(err)
	}
	return asJSON(map[string]string{"path": path})
}

func (s *Server) handleDeleteTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.api.DeleteTemplate(name); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("template deleted"), nil
}
