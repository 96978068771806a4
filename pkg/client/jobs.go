// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// JobClient provides access to the one-off job ledger.
type JobClient struct {
	c *Client
}

// OneOffRequest are the inputs for EnqueueOneOff.
type OneOffRequest struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Template    string `json:"template,omitempty"`
	Description string `json:"description,omitempty"`
	WorkingDir  string `json:"working_dir,omitempty"`
	SessionRoot string `json:"session_root,omitempty"`
}

// List returns the job ledger.
func (jc *JobClient) List(ctx context.Context, sessionRoot string) ([]JobRecord, error) {
	data, err := jc.c.get(ctx, "/api/jobs"+sessionRootQuery(sessionRoot))
	if err != nil {
		return nil, err
	}
	var jobs []JobRecord
	if err := decode(data, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// EnqueueOneOff queues a one-off command and returns the created session.
func (jc *JobClient) EnqueueOneOff(ctx context.Context, req OneOffRequest) (*SessionRecord, error) {
	data, err := jc.c.postJSON(ctx, "/api/jobs", req)
	if err != nil {
		return nil, err
	}
	var record SessionRecord
	if err := decode(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
