package prompt

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is the time to wait after a file event before reloading.
// This coalesces rapid successive writes into a single reload.
var debounceDelay = 100 * time.Millisecond

// newWatcherFunc creates an fsnotify watcher; tests may replace it to inject errors.
type newWatcherFunc func() (*fsnotify.Watcher, error)

// Watcher reloads a Library's overrides when .md files in its directory
// change. Reload errors are logged and leave the previous set in place.
type Watcher struct {
	lib          *Library
	dir          string
	logger       *slog.Logger
	watcher      *fsnotify.Watcher
	done         chan struct{}
	mu           sync.Mutex
	running      bool
	newWatcherFn newWatcherFunc // nil means use fsnotify.NewWatcher
}

// NewWatcher creates a watcher for the given library and override directory.
// Call Start to begin watching and Stop to release resources.
func NewWatcher(lib *Library, dir string, logger *slog.Logger) *Watcher {
	if lib == nil {
		panic("prompt: library must not be nil")
	}
	return &Watcher{
		lib:    lib,
		dir:    dir,
		logger: logger,
	}
}

// log returns the watcher's logger, falling back to the default slog logger.
func (w *Watcher) log() *slog.Logger {
	if w.logger != nil {
		return w.logger
	}
	return slog.Default()
}

// Start begins watching the override directory. Start must not be called more
// than once without an intervening Stop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir == "" {
		return errors.New("prompt watcher: no directory configured")
	}
	if w.running {
		return errors.New("prompt watcher: already started")
	}

	newWatcher := fsnotify.NewWatcher
	if w.newWatcherFn != nil {
		newWatcher = w.newWatcherFn
	}
	watcher, err := newWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running = true

	go w.eventLoop()

	return nil
}

// Stop ceases watching and releases resources. Safe to call even if not started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	close(w.done)
	err := w.watcher.Close()
	w.running = false
	return err
}

// eventLoop listens for fsnotify events and reloads with debouncing.
func (w *Watcher) eventLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Only react to .md files.
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			// Writes, creates, removes, and renames all change the override set.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Debounce: reset the timer on every qualifying event.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := w.lib.Reload(); err != nil {
					w.log().Warn("prompt reload failed, keeping previous set", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log().Warn("prompt watcher error", "error", err)
		}
	}
}
