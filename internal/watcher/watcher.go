// Package watcher reports transcript files that changed, debounced per file.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TranscriptExt is the extension of transcript files
const TranscriptExt = ".jsonl"

// Watcher watches a directory tree for transcript writes. The callback runs
// once a file has been quiet for the debounce interval, and never concurrently.
type Watcher struct {
	root       string
	debounce   time.Duration
	callback   func(path string)
	logger     *slog.Logger
	watcher    *fsnotify.Watcher
	done       chan struct{}
	started    bool
	closed     bool
	mu         sync.Mutex
	debouncer  map[string]*time.Timer
	debounceMu sync.Mutex
	callMu     sync.Mutex
	stopped    atomic.Bool
}

// New creates a watcher on root and every directory below it
func New(root string, debounce time.Duration, logger *slog.Logger, callback func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Watcher{
		root:      root,
		debounce:  debounce,
		callback:  callback,
		logger:    logger,
		watcher:   fw,
		done:      make(chan struct{}),
		debouncer: make(map[string]*time.Timer),
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and its subdirectories; fsnotify is not recursive
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch path %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch path %s: %w", dir, err)
			}
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Start starts watching for events
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	w.started = true

	go w.watch()
	return nil
}

// Close stops watching, cancels pending callbacks and waits for a running one
func (w *Watcher) Close() error {
	err := w.close()

	w.callMu.Lock()
	w.callMu.Unlock()
	return err
}

func (w *Watcher) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.stopped.Store(true)

	if w.started {
		close(w.done)
	}

	w.debounceMu.Lock()
	for _, timer := range w.debouncer {
		timer.Stop()
	}
	w.debouncer = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// new project directories appear while the host runs
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, TranscriptExt) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.debounceEvent(event.Name)
}

// debounceEvent restarts the quiet-period timer for path
func (w *Watcher) debounceEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debouncer[path]; exists {
		timer.Stop()
	}

	w.debouncer[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debouncer, path)
		w.debounceMu.Unlock()

		w.callMu.Lock()
		defer w.callMu.Unlock()
		if w.stopped.Load() {
			return
		}
		w.callback(path)
	})
}
