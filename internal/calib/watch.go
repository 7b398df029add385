package calib

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a FileStore document when it changes on disk.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	store    *FileStore
	key      string
	onChange func(Points)
	log      *slog.Logger
	done     chan struct{}
	closed   bool
}

// NewWatcher prepares a watcher for key. Call Start to begin delivering reloads.
func NewWatcher(store *FileStore, key string, onChange func(Points), log *slog.Logger) (*Watcher, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		store:    store,
		key:      key,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the store directory, creating it when missing.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.store.Dir(), 0o755); err != nil {
		return err
	}
	if err := w.fsw.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.store.Dir(), err)
	}
	w.log.Info("watching points", "dir", w.store.Dir(), "key", w.key)
	go w.loop()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()
	return w.fsw.Close()
}

// loop turns file events for the watched key into reloads.
func (w *Watcher) loop() {
	target := filepath.Clean(w.store.Path(w.key))
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("points watcher error", "err", err)
		}
	}
}

// reload reads the document and hands valid points to the callback.
func (w *Watcher) reload() {
	p, found, err := w.store.Load(context.Background(), w.key)
	if err != nil {
		w.log.Warn("points reload skipped", "key", w.key, "err", err)
		return
	}
	if !found || w.onChange == nil {
		return
	}
	w.onChange(p)
}
