// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures the export directory watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more writes before loading.
	// Schedule exports are written in one burst by the upstream parser;
	// debouncing avoids loading half-written files.
	// Default: 500ms
	DebounceWindow time.Duration

	// BufferSize is the size of the pending-event channel.
	// Default: 256
	BufferSize int
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 500 * time.Millisecond,
		BufferSize:     256,
	}
}

// Watcher watches a directory of schedule exports and registers each new or
// rewritten *.json file into a MemoryStore.
//
// # Description
//
// The upstream schedule parser drops one JSON export per snapshot into a
// directory. Watcher picks them up with a debounce window so partially
// written files are not loaded, then replaces the store entry for the
// export's snapshot id.
//
// # Thread Safety
//
// Safe for concurrent use. Loading happens on a single goroutine.
type Watcher struct {
	dir      string
	store    *MemoryStore
	watcher  *fsnotify.Watcher
	opts     WatcherOptions
	pending  chan string
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the given export directory.
func NewWatcher(dir string, store *MemoryStore, opts WatcherOptions) (*Watcher, error) {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultWatcherOptions().DebounceWindow
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultWatcherOptions().BufferSize
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:     dir,
		store:   store,
		watcher: fsw,
		opts:    opts,
		pending: make(chan string, opts.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. Returns immediately; loading happens in the
// background until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.collectLoop(ctx)
	go w.loadLoop(ctx)
}

// Stop stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// collectLoop forwards relevant fsnotify events into the pending channel.
func (w *Watcher) collectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			select {
			case w.pending <- event.Name:
			default:
				slog.Warn("export watcher buffer full, dropping event",
					slog.String("path", event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("export watcher error", slog.Any("error", err))
		}
	}
}

// loadLoop debounces pending paths and loads them into the store.
func (w *Watcher) loadLoop(ctx context.Context) {
	dirty := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.pending:
			dirty[filepath.Clean(path)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.DebounceWindow)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.DebounceWindow)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			for path := range dirty {
				w.loadOne(ctx, path)
			}
			dirty = make(map[string]struct{})
		}
	}
}

// loadOne loads a single export file, replacing any existing registration.
func (w *Watcher) loadOne(ctx context.Context, path string) {
	snap, err := LoadFile(path)
	if err != nil {
		slog.Warn("watched export failed to load",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return
	}
	if err := w.store.Replace(ctx, snap); err != nil {
		slog.Error("failed to register watched export",
			slog.String("path", path),
			slog.String("snapshot_id", snap.ID),
			slog.Any("error", err),
		)
		return
	}
	slog.Info("registered schedule export",
		slog.String("snapshot_id", snap.ID),
		slog.String("data_date", snap.DataDate.Format("2006-01-02")),
		slog.Int("tasks", len(snap.Tasks)),
	)
}
