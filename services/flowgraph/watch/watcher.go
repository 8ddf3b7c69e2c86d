// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports batched changes to component files in a workspace.
//
// The watcher never touches a graph. Callers decide what a batch of
// changes means, typically a rebuild followed by a health check.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one file system change.
type Change struct {
	// Path is relative to the watched root, slash separated.
	Path string

	Op   Op
	Time time.Time
}

// Handler receives a debounced batch of changes, deduplicated by path.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for quiet before flushing.
	Debounce time.Duration

	// IgnorePatterns are base-name globs for files and directories to skip.
	IgnorePatterns []string

	// Extensions are the file extensions reported. Empty means all.
	Extensions []string

	// ExcludedSuffixes are file name suffixes never reported.
	ExcludedSuffixes []string

	// BufferSize bounds pending, unflushed events.
	BufferSize int

	Logger *slog.Logger
}

// DefaultOptions watches .json files with a 200ms debounce.
func DefaultOptions() Options {
	return Options{
		Debounce:         200 * time.Millisecond,
		IgnorePatterns:   []string{".git", "node_modules", ".idea", "*.swp", "*.tmp", "*~"},
		Extensions:       []string{".json"},
		ExcludedSuffixes: []string{".diagram.json", ".layout.json"},
		BufferSize:       1000,
	}
}

// Option configures a Watcher.
type Option func(*Options)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Debounce = d
		}
	}
}

// WithExcludedSuffixes replaces the excluded file suffixes.
func WithExcludedSuffixes(suffixes ...string) Option {
	return func(o *Options) {
		o.ExcludedSuffixes = suffixes
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Watcher watches a workspace recursively and reports debounced batches.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single
//	goroutine, so batches never overlap.
type Watcher struct {
	root    string
	options Options
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	handler Handler

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
}

// New creates a watcher for root. Call Start to begin.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.BufferSize <= 0 {
		options.BufferSize = 1000
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:    abs,
		options: options,
		logger:  logger.With(slog.String("component", "watcher")),
		fsw:     fsw,
		handler: handler,
		changes: make(chan Change, options.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start adds every directory under root and begins reporting changes.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts the watcher and waits for its goroutines. Pending changes are
// flushed to the handler first.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true while the watcher is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.options.IgnorePatterns {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// reported returns true for component files the caller cares about.
func (w *Watcher) reported(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, suffix := range w.options.ExcludedSuffixes {
		if strings.HasSuffix(base, strings.ToLower(suffix)) {
			return false
		}
	}
	if len(w.options.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(base)
	for _, e := range w.options.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory failed",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
					continue
				}
			}
			if !w.reported(event.Name) {
				continue
			}

			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				rel = event.Name
			}
			change := Change{
				Path: filepath.ToSlash(rel),
				Op:   convertOp(event.Op),
				Time: time.Now(),
			}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("change buffer full, event dropped", slog.String("file", change.Path))
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(ctx, dedupe(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			drain := true
			for drain {
				select {
				case c := <-w.changes:
					batch = append(batch, c)
				default:
					drain = false
				}
			}
			flush()
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.options.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.options.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int)
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, ok := seen[c.Path]; ok {
			out[idx] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
