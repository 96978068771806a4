// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package rest exposes the session orchestrator over HTTP/JSON.
package rest

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/check-the-vibe/vibestack/internal/api"
)

// ServerConfig holds configuration for the REST server.
type ServerConfig struct {
	Host string
	Port int
}

// NewRouter creates the API router.
func NewRouter(a *api.API) *mux.Router {
	r := mux.NewRouter()

	r.Use(Logging)
	r.Use(Recovery)
	r.Use(CORS)

	h := NewHandler(a)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	apiRouter.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	apiRouter.HandleFunc("/sessions/{name}", h.GetSession).Methods("GET")
	apiRouter.HandleFunc("/sessions/{name}", h.DeleteSession).Methods("DELETE")
	apiRouter.HandleFunc("/sessions/{name}/input", h.SendInput).Methods("POST")
	apiRouter.HandleFunc("/sessions/{name}/log", h.TailLog).Methods("GET")
	apiRouter.HandleFunc("/sessions/{name}/log/ws", h.StreamLog).Methods("GET")
	apiRouter.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	apiRouter.HandleFunc("/jobs", h.EnqueueOneOff).Methods("POST")
	apiRouter.HandleFunc("/templates", h.ListTemplates).Methods("GET")
	apiRouter.HandleFunc("/templates", h.SaveTemplate).Methods("POST")
	apiRouter.HandleFunc("/templates/{name}", h.DeleteTemplate).Methods("DELETE")
	apiRouter.HandleFunc("/health", h.Health).Methods("GET")

	// Matched OPTIONS requests run the middleware chain, where CORS answers
	// the preflight.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	return r
}

// Server is the REST API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new REST server.
func NewServer(cfg ServerConfig, a *api.API) *Server {
	return &Server{
		router: NewRouter(a),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	log.Printf("REST server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down REST server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
