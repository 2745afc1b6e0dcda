package corpus

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a Store in sync with filesystem changes under its root.
// File writes reload the document and bump its version, so anchors taken
// before the change keep resolving against the new contents. Deleted or
// renamed-away files are dropped from the store.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(path string)

	closeOnce sync.Once
	done      chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithChangeCallback registers a callback invoked after each document
// reload, with the document's store-relative path.
func WithChangeCallback(fn func(path string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithWatcherLogger sets a custom logger. Default is slog.Default().
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
	}
}

// NewWatcher starts watching the store's root directory tree. The
// returned watcher runs until Close is called.
func NewWatcher(store *Store, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:   store,
		watcher: fsw,
		logger:  slog.Default().With("component", "corpus-watcher"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Watch every directory under the root; fsnotify is not recursive.
	err = filepath.WalkDir(store.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != store.Root() {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.handleRemove(event.Name)
			case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
				w.handle(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	if fi.IsDir() {
		if addErr := w.watcher.Add(path); addErr != nil {
			w.logger.Warn("cannot watch new directory", "path", path, "err", addErr)
		}
		return
	}
	if err := w.store.LoadFile(path); err != nil {
		w.logger.Warn("reload failed", "path", path, "err", err)
		return
	}
	if w.onChange != nil {
		rel, relErr := filepath.Rel(w.store.Root(), path)
		if relErr != nil {
			rel = path
		}
		w.onChange(filepath.ToSlash(rel))
	}
}

// handleRemove drops the document for a deleted or renamed-away file so
// it stops producing matches. A rename within the root re-adds the new
// name through its Create event.
func (w *Watcher) handleRemove(path string) {
	rel, err := filepath.Rel(w.store.Root(), path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if !w.store.Remove(rel) {
		return
	}
	if w.onChange != nil {
		w.onChange(rel)
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
