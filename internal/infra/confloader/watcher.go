package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events editors produce for one save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches configuration files for changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	files     map[string]struct{}
	callbacks []func(string)
	pending   map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets how long the watcher waits for a file to settle
// before notifying. Zero notifies on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		files:    make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "confloader.watcher")

	return w, nil
}

// Watch adds a configuration file. Events for other files in the same
// directory are ignored.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	// Watch the directory, not the file, to catch vim-style renames
	dir := filepath.Dir(path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory",
			"path", dir,
			"error", err,
		)
		return err
	}

	w.mu.Lock()
	w.files[path] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("watching file for changes",
		"path", dir,
		"file", filepath.Base(path),
	)
	return nil
}

// OnChange registers a callback to be called when a watched file changes.
// The callback receives the path of the changed file.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start starts watching for changes.
// This function blocks until Stop() is called.
func (w *Watcher) Start() {
	w.logger.Info("configuration watcher started")

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.watched(event.Name) {
				continue
			}
			w.logger.Debug("configuration file changed",
				"file", event.Name,
				"op", event.Op.String(),
			)
			w.schedule(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher and cancels pending notifications. It is safe
// to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if err := w.watcher.Close(); err != nil {
			w.logger.Error("failed to close watcher", "error", err)
			w.stopErr = err
			return
		}
		w.logger.Info("configuration watcher stopped")
	})
	return w.stopErr
}

func (w *Watcher) watched(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(name)]
	return ok
}

// schedule notifies after the debounce window, restarting the window on
// every new event for the same path.
func (w *Watcher) schedule(path string) {
	if w.debounce <= 0 {
		w.notifyCallbacks(path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.notifyCallbacks(path)
	})
}

// notifyCallbacks calls all registered callbacks.
func (w *Watcher) notifyCallbacks(path string) {
	w.mu.RLock()
	callbacks := append([]func(string){}, w.callbacks...)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(path)
	}
}
