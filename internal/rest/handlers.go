// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	ps "github.com/mitchellh/go-ps"

	"github.com/check-the-vibe/vibestack/internal/api"
	"github.com/check-the-vibe/vibestack/internal/session"
)

const (
	defaultTailLines = 200
	maxTailLines     = 2000
)

// Handler serves the /api resource routes.
type Handler struct {
	api *api.API
}

// NewHandler creates a new REST handler over the API layer.
func NewHandler(a *api.API) *Handler {
	return &Handler{api: a}
}

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := h.api.ListSessions(r.Context(), r.URL.Query().Get("session_root"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*api.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetSession handles GET /api/sessions/{name}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	record, err := h.api.GetSession(r.Context(), name, r.URL.Query().Get("session_root"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type createSessionRequest struct {
	Name        string   `json:"name"`
	Template    string   `json:"template"`
	Command     *string  `json:"command"`
	CommandArgs []string `json:"command_args"`
	WorkingDir  string   `json:"working_dir"`
	Description string   `json:"description"`
	SessionRoot string   `json:"session_root"`
}

// CreateSession handles POST /api/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}
	template := req.Template
	if template == "" {
		template = "bash"
	}
	record, err := h.api.CreateSession(r.Context(), session.CreateOptions{
		Name:        req.Name,
		Template:    template,
		Command:     req.Command,
		CommandArgs: req.CommandArgs,
		WorkingDir:  req.WorkingDir,
		Description: req.Description,
	}, req.SessionRoot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// DeleteSession handles DELETE /api/sessions/{name}. The tmux session is
// killed; the session's filesystem tree is preserved.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	sessionRoot := r.URL.Query().Get("session_root")
	if _, err := h.api.GetSession(r.Context(), name, sessionRoot); err != nil {
		writeError(w, err)
		return
	}
	if err := h.api.KillSession(r.Context(), name, sessionRoot); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendInputRequest struct {
	Text  string `json:"text"`
	Enter *bool  `json:"enter"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SendInput handles POST /api/sessions/{name}/input.
func (h *Handler) SendInput(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	sessionRoot := r.URL.Query().Get("session_root")

	var req sendInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeDetail(w, http.StatusBadRequest, "text is required")
		return
	}
	enter := true
	if req.Enter != nil {
		enter = *req.Enter
	}

	if _, err := h.api.GetSession(r.Context(), name, sessionRoot); err != nil {
		writeError(w, err)
		return
	}
	if err := h.api.SendText(r.Context(), name, req.Text, enter, sessionRoot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "input queued"})
}

type tailResponse struct {
	Log string `json:"log"`
}

// TailLog handles GET /api/sessions/{name}/log.
func (h *Handler) TailLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	lines := defaultTailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTailLines {
			writeDetail(w, http.StatusBadRequest, "lines must be between 1 and 2000")
			return
		}
		lines = parsed
	}

	log, err := h.api.TailLog(r.Context(), name, lines, r.URL.Query().Get("session_root"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tailResponse{Log: log})
}

// ListJobs handles GET /api/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.api.ListJobs(r.Context(), r.URL.Query().Get("session_root"))
	if err != nil {
		writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []session.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

type oneOffRequest struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Template    string `json:"template"`
	Description string `json:"description"`
	WorkingDir  string `json:"working_dir"`
	SessionRoot string `json:"session_root"`
}

// EnqueueOneOff handles POST /api/jobs.
func (h *Handler) EnqueueOneOff(w http.ResponseWriter, r *http.Request) {
	var req oneOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Command == "" {
		writeDetail(w, http.StatusBadRequest, "name and command are required")
		return
	}
	record, err := h.api.EnqueueOneOff(r.Context(), req.Name, req.Command, session.CreateOptions{
		Template:    req.Template,
		Description: req.Description,
		WorkingDir:  req.WorkingDir,
	}, req.SessionRoot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// ListTemplates handles GET /api/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.ListTemplates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type saveTemplateRequest struct {
	Payload        map[string]any `json:"payload"`
	IncludeSources []string       `json:"include_sources"`
}

type saveTemplateResponse struct {
	Path string `json:"path"`
}

// SaveTemplate handles POST /api/templates.
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req saveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Payload == nil {
		writeDetail(w, http.StatusBadRequest, "payload is required")
		return
	}
	path, err := h.api.SaveTemplate(req.Payload, req.IncludeSources)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveTemplateResponse{Path: path})
}

// DeleteTemplate handles DELETE /api/templates/{name}.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.api.DeleteTemplate(mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "template deleted"})
}

type healthResponse struct {
	Status     string `json:"status"`
	TmuxServer bool   `json:"tmux_server"`
}

// Health handles GET /api/health. The tmux_server flag reports whether a
// tmux server process is present on the host.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", TmuxServer: tmuxServerRunning()})
}

// tmuxServerRunning scans the process table for a tmux server.
func tmuxServerRunning() bool {
	processes, err := ps.Processes()
	if err != nil {
		return false
	}
	for _, p := range processes {
		if p.Executable() == "tmux" || p.Executable() == "tmux: server" {
			return true
		}
	}
	return false
}
