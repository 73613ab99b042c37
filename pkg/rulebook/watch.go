package rulebook

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/cablecat/pkg/classify"
)

const defaultDebounce = 200 * time.Millisecond

// LoadFunc loads and compiles a rulebook.
type LoadFunc func() (*classify.Classifier, error)

// Watcher keeps a [classify.Classifier] current with a rulebook file.
// A revision that fails to compile is reported and the previous classifier
// stays in use.
type Watcher struct {
	current  atomic.Pointer[classify.Classifier]
	load     LoadFunc
	onReload func(err error)
	path     string
	debounce time.Duration
}

// WatcherOpt configures a [Watcher].
type WatcherOpt func(w *Watcher)

// WithOnReload sets a callback invoked after every reload attempt.
func WithOnReload(f func(err error)) WatcherOpt {
	return func(w *Watcher) {
		w.onReload = f
	}
}

// WithDebounce sets how long to wait for writes to settle before reloading.
func WithDebounce(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the rulebook at path once and returns a [Watcher].
// An error from the initial load is returned as is.
func NewWatcher(path string, load LoadFunc, opts ...WatcherOpt) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	w := &Watcher{path: abs, load: load, debounce: defaultDebounce}
	for _, opt := range opts {
		opt(w)
	}

	c, err := load()
	if err != nil {
		return nil, err
	}

	w.current.Store(c)

	return w, nil
}

// Classifier returns the classifier for the latest valid revision.
func (w *Watcher) Classifier() *classify.Classifier {
	return w.current.Load()
}

// Run watches the rulebook until ctx is done. The parent directory is
// watched so that editors which replace the file are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		err := fw.Close()
		if err != nil {
			slog.ErrorContext(ctx, "close watcher", slog.Any("error", err))
		}
	}()

	err = fw.Add(filepath.Dir(w.path))
	if err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			slog.WarnContext(ctx, "rulebook watcher error", slog.Any("error", err))

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	c, err := w.load()
	if err != nil {
		slog.WarnContext(ctx, "rulebook reload failed, keeping previous revision",
			slog.String("path", w.path),
			slog.Any("error", err),
		)
	} else {
		w.current.Store(c)
		slog.InfoContext(ctx, "rulebook reloaded", slog.String("path", w.path))
	}

	if w.onReload != nil {
		w.onReload(err)
	}
}
