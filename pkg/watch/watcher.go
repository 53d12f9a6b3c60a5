// Package watch turns a drop folder into upload intents: every new or
// rewritten file matching the configured patterns is handed to a callback
// once it has been quiet for the debounce delay.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/sabio/insight-dash/pkg/logging"
)

// DefaultDebounce is how long a file must be quiet before it is handed on.
const DefaultDebounce = 500 * time.Millisecond

// minTick bounds how often pending files are checked.
const minTick = time.Millisecond

// Options configure a Watcher.
type Options struct {
	Dir      string
	Patterns []string
	Debounce time.Duration
	Logger   logging.Logger
}

// Watcher watches Dir recursively for files matching Patterns.
type Watcher struct {
	dir      string
	patterns []string
	debounce time.Duration
	logger   logging.Logger
	fsw      *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// New validates the patterns and opens an fsnotify watcher.
func New(opts Options) (*Watcher, error) {
	for _, p := range opts.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		dir:      opts.Dir,
		patterns: opts.Patterns,
		debounce: opts.Debounce,
		logger:   logging.OrDefault(opts.Logger),
		fsw:      fsw,
		pending:  make(map[string]time.Time),
	}, nil
}

// Match reports whether rel (a slash- or OS-separated path relative to the
// watched directory) matches any pattern. Patterns without a slash match
// the base name at any depth.
func Match(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}

	for _, p := range patterns {
		target := rel
		if !strings.Contains(p, "/") {
			target = base
		}
		if ok, err := doublestar.Match(p, target); err == nil && ok {
			return true
		}
	}
	return false
}

// Run watches until ctx is done, calling onFile with the absolute path of
// each settled file. Calls are sequential.
func (w *Watcher) Run(ctx context.Context, onFile func(ctx context.Context, path string)) error {
	defer w.fsw.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := w.addRecursive(w.dir); err != nil {
		return err
	}
	w.logger.Info("Watching drop folder", "dir", w.dir, "patterns", strings.Join(w.patterns, ","))

	ticker := time.NewTicker(tickInterval(w.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				if ctx.Err() != nil {
					return nil
				}
				onFile(ctx, path)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.pendingMu.Lock()
		delete(w.pending, event.Name)
		w.pendingMu.Unlock()
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || !Match(w.patterns, rel) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = time.Now()
	w.pendingMu.Unlock()
	w.logger.Debug("Drop folder change", "path", rel, "op", event.Op.String())
}

func tickInterval(debounce time.Duration) time.Duration {
	return max(debounce/2, minTick)
}

// settled removes and returns the pending files quiet since now-debounce.
func (w *Watcher) settled(now time.Time) []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if base := d.Name(); path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
