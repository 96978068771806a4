// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package templates

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDuration = 250 * time.Millisecond

// debouncer coalesces bursts of filesystem events into a single refresh.
// Editors typically emit several write/rename events per save.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timers   map[string]*time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &debouncer{
		duration: duration,
		timers:   make(map[string]*time.Timer),
	}
}

func (d *debouncer) debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[key]; exists {
		timer.Stop()
	}
	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Watcher refreshes a resolver whenever template JSON files change on disk,
// so edits made by other processes (or by hand) are picked up without a
// restart.
type Watcher struct {
	resolver  *Resolver
	fsWatcher *fsnotify.Watcher
	debounce  *debouncer
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching the resolver's template directories.
func NewWatcher(resolver *Resolver) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		resolver:  resolver,
		fsWatcher: fsWatcher,
		debounce:  newDebouncer(defaultDebounceDuration),
		done:      make(chan struct{}),
	}
	for _, dir := range []string{resolver.dirs.TemplateDir, resolver.dirs.UserTemplateDir} {
		if dir == "" {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			log.Printf("template watcher: cannot watch %s: %v", dir, err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce.debounce("refresh", func() {
				log.Printf("template watcher: reloading templates (%s)", event.Name)
				w.resolver.Refresh()
			})
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("template watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.debounce.stop()
		err = w.fsWatcher.Close()
	})
	return err
}
