package watch

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Notifier installs file system watches.
type Notifier interface {
	// Watch starts observing path (non-recursively).
	Watch(path string) (Handle, error)
}

// Handle is one installed watch. Close is idempotent.
type Handle interface {
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// FSNotifier installs watches backed by fsnotify, one fsnotify.Watcher per
// handle so that closing one level never affects another level watching the
// same directory.
type FSNotifier struct{}

// Watch implements Notifier.
func (FSNotifier) Watch(path string) (Handle, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %q: %w", path, err)
	}

	return &fsHandle{w: w}, nil
}

type fsHandle struct {
	w    *fsnotify.Watcher
	once sync.Once
	err  error
}

func (h *fsHandle) Events() <-chan fsnotify.Event { return h.w.Events }
func (h *fsHandle) Errors() <-chan error          { return h.w.Errors }

func (h *fsHandle) Close() error {
	h.once.Do(func() { h.err = h.w.Close() })
	return h.err
}
