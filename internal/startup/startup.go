// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package startup provisions declared sessions when the daemon boots.
package startup

import (
	"context"
	"errors"
	"log"

	"github.com/check-the-vibe/vibestack/internal/api"
	"github.com/check-the-vibe/vibestack/internal/session"
)

// Spec is a declarative description of a startup session.
type Spec struct {
	Name        string
	Template    string
	Command     string
	CommandArgs []string
	Description string
}

// EnsureSessions creates any missing startup sessions and returns the
// record of each spec whose session exists afterwards. Existing sessions are
// reused; creation races resolve to the surviving session; other failures
// are logged and skipped, so those specs have no record in the result.
func EnsureSessions(ctx context.Context, a *api.API, specs []Spec) []*api.Record {
	var results []*api.Record

	for _, spec := range specs {
		if existing, err := a.GetSession(ctx, spec.Name, ""); err == nil {
			results = append(results, existing)
			continue
		}

		template := spec.Template
		if template == "" {
			template = "bash"
		}
		opts := session.CreateOptions{
			Name:        spec.Name,
			Template:    template,
			CommandArgs: spec.CommandArgs,
			Description: spec.Description,
		}
		if spec.Command != "" {
			command := spec.Command
			opts.Command = &command
		}

		created, err := a.CreateSession(ctx, opts, "")
		if err != nil {
			var existsErr *session.AlreadyExistsError
			if errors.As(err, &existsErr) {
				if fallback, gerr := a.GetSession(ctx, spec.Name, ""); gerr == nil {
					results = append(results, fallback)
				}
				continue
			}
			log.Printf("startup session %s: %v", spec.Name, err)
			continue
		}
		results = append(results, created)
	}

	return results
}
