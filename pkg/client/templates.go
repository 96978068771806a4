// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/url"
)

// TemplateClient provides access to template CRUD.
type TemplateClient struct {
	c *Client
}

// SaveTemplateRequest are the inputs for Save. Payload is the template
// definition; IncludeSources are absolute paths of files copied into the
// user asset directory.
type SaveTemplateRequest struct {
	Payload        map[string]any `json:"payload"`
	IncludeSources []string       `json:"include_sources,omitempty"`
}

type saveTemplateResponse struct {
	Path string `json:"path"`
}

// List returns built-in and user-provided templates.
func (tc *TemplateClient) List(ctx context.Context) ([]TemplateRecord, error) {
	data, err := tc.c.get(ctx, "/api/templates")
	if err != nil {
		return nil, err
	}
	var list []TemplateRecord
	if err := decode(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Save persists a user template and returns the written file path.
func (tc *TemplateClient) Save(ctx context.Context, req SaveTemplateRequest) (string, error) {
	data, err := tc.c.postJSON(ctx, "/api/templates", req)
	if err != nil {
		return "", err
	}
	var resp saveTemplateResponse
	if err := decode(data, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Delete removes a user template.
func (tc *TemplateClient) Delete(ctx context.Context, name string) error {
	_, err := tc.c.delete(ctx, "/api/templates/"+url.PathEscape(name))
	return err
}
