// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// vibestack is the session orchestrator daemon: it serves the REST API and
// the MCP streamable-HTTP endpoint over a shared session manager.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/check-the-vibe/vibestack/internal/api"
	"github.com/check-the-vibe/vibestack/internal/config"
	"github.com/check-the-vibe/vibestack/internal/mcp"
	"github.com/check-the-vibe/vibestack/internal/rest"
	"github.com/check-the-vibe/vibestack/internal/startup"
	"github.com/check-the-vibe/vibestack/internal/templates"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	host := flag.String("host", "", "REST listen host (overrides config)")
	port := flag.Int("port", 0, "REST listen port (overrides config)")
	mcpPort := flag.Int("mcp-port", 0, "MCP listen port (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vibestack %s\n", version)
		return
	}

	cfg := loadConfig(*configPath)
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *mcpPort > 0 {
		cfg.MCP.Port = *mcpPort
	}

	a := api.New(api.Options{
		SessionRoot:     cfg.Paths.SessionRoot,
		RepoRoot:        cfg.Paths.RepoRoot,
		TemplateDir:     cfg.Paths.TemplateDir,
		UserTemplateDir: cfg.Paths.UserTemplateDir,
		AssetDir:        cfg.Paths.AssetDir,
		UserAssetDir:    cfg.Paths.UserAssetDir,
	})

	// Fail fast on an unusable session root before opening listeners.
	mgr, err := a.Manager("")
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	watcher, err := templates.NewWatcher(mgr.Templates())
	if err != nil {
		log.Printf("Template watcher disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ensureStartupSessions(ctx, a, cfg)

	restServer := rest.NewServer(rest.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, a)

	errCh := make(chan error, 2)
	go func() {
		if err := restServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rest server: %w", err)
		}
	}()

	var mcpServer *mcp.Server
	if cfg.MCPEnabled() {
		mcpServer = mcp.NewServer(a)
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.MCP.Host, cfg.MCP.Port)
			if err := mcpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST shutdown: %v", err)
	}
	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("MCP shutdown: %v", err)
		}
	}
}

// loadConfig loads the config file when present, otherwise the defaults.
func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path == "" {
		found, err := loader.FindConfig()
		if err != nil {
			return loader.Default()
		}
		path = found
	}
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	log.Printf("Loaded config from %s", path)
	return cfg
}

// ensureStartupSessions provisions the sessions declared in the config.
func ensureStartupSessions(ctx context.Context, a *api.API, cfg *config.Config) {
	if len(cfg.Startup) == 0 {
		return
	}
	specs := make([]startup.Spec, 0, len(cfg.Startup))
	for _, sc := range cfg.Startup {
		specs = append(specs, startup.Spec{
			Name:        sc.Name,
			Template:    sc.Template,
			Command:     sc.Command,
			CommandArgs: sc.CommandArgs,
			Description: sc.Description,
		})
	}
	records := startup.EnsureSessions(ctx, a, specs)
	log.Printf("Ensured %d startup session(s)", len(records))
}
