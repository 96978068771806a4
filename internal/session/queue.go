// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// queueDocument is the on-disk shape of queue.json.
type queueDocument struct {
	Jobs []Job `json:"jobs"`
}

// queueMu serializes ledger mutations inside this process. The flock below
// covers other co-resident processes (REST, MCP and CLI may all mutate the
// ledger).
var queueMu sync.Mutex

// withQueueLock runs fn while holding both the in-process lock and the OS
// advisory lock on queue.json.
func (s *Store) withQueueLock(fn func() error) error {
	queueMu.Lock()
	defer queueMu.Unlock()

	lock := flock.New(s.QueuePath())
	if err := lock.Lock(); err != nil {
		return &StorageError{Op: "lock", Path: s.QueuePath(), Err: err}
	}
	defer lock.Unlock()

	return fn()
}

func (s *Store) readQueue() (*queueDocument, error) {
	data, err := os.ReadFile(s.QueuePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &queueDocument{Jobs: []Job{}}, nil
		}
		return nil, &StorageError{Op: "read", Path: s.QueuePath(), Err: err}
	}
	var doc queueDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StorageError{Op: "parse", Path: s.QueuePath(), Err: err}
	}
	if doc.Jobs == nil {
		doc.Jobs = []Job{}
	}
	return &doc, nil
}

// AddJob appends an entry to the ledger.
func (s *Store) AddJob(job Job) error {
	return s.withQueueLock(func() error {
		doc, err := s.readQueue()
		if err != nil {
			return err
		}
		doc.Jobs = append(doc.Jobs, job)
		return writeJSONFile(s.QueuePath(), doc)
	})
}

// UpdateJob rewrites the status (and optionally the message) of the ledger
// entry with the given id. Unknown ids are ignored.
func (s *Store) UpdateJob(id string, status Status, message string) error {
	if id == "" {
		return nil
	}
	return s.withQueueLock(func() error {
		doc, err := s.readQueue()
		if err != nil {
			return err
		}
		for i := range doc.Jobs {
			if doc.Jobs[i].ID != id {
				continue
			}
			doc.Jobs[i].Status = status
			doc.Jobs[i].UpdatedAt = Now()
			if message != "" {
				doc.Jobs[i].Message = message
			}
			return writeJSONFile(s.QueuePath(), doc)
		}
		return nil
	})
}

// RemoveJob deletes the ledger entry with the given id. Used to roll back a
// failed session creation.
func (s *Store) RemoveJob(id string) error {
	if id == "" {
		return nil
	}
	return s.withQueueLock(func() error {
		doc, err := s.readQueue()
		if err != nil {
			return err
		}
		kept := doc.Jobs[:0]
		for _, job := range doc.Jobs {
			if job.ID != id {
				kept = append(kept, job)
			}
		}
		if len(kept) == len(doc.Jobs) {
			return nil
		}
		doc.Jobs = kept
		return writeJSONFile(s.QueuePath(), doc)
	})
}

// ListJobs returns the ledger contents in insertion order.
func (s *Store) ListJobs() ([]Job, error) {
	var jobs []Job
	err := s.withQueueLock(func() error {
		doc, err := s.readQueue()
		if err != nil {
			return err
		}
		jobs = doc.Jobs
		return nil
	})
	return jobs, err
}
