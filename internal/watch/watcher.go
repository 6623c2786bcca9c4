package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bidsconv/internal/bidsconfig"
	"bidsconv/internal/log"
	"bidsconv/pkg/types"
)

// Validator checks a loaded configuration.
type Validator interface {
	Validate(cfg *types.Config) []string
}

// ValidationEvent is the outcome of re-validating the watched rule file.
// Err is set when the file could not be loaded; Issues is then nil.
type ValidationEvent struct {
	Path      string
	Issues    []string
	Err       error
	Timestamp time.Time
}

// Valid reports whether the file loaded and produced no issues.
func (e ValidationEvent) Valid() bool {
	return e.Err == nil && len(e.Issues) == 0
}

// Watcher re-validates a rule file whenever it is written or replaced.
type Watcher struct {
	// Absolute path of the rule file
	path string

	// Directory registered with fsnotify, so replace-by-rename is seen
	dir string

	validator Validator
	logger    log.Logging

	// Channel to deliver validation results
	events chan ValidationEvent

	// Channel to signal stop
	stopChan chan struct{}
	done     sync.WaitGroup

	// fsnotify watcher instance
	fsWatcher *fsnotify.Watcher

	// Lock for running state
	mutex sync.RWMutex

	// Whether the watcher is running
	running bool

	// Set by Stop; a stopped watcher cannot be restarted
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l log.Logging) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithBuffer sets the capacity of the event channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.events = make(chan ValidationEvent, n)
		}
	}
}

// New creates a watcher for the rule file at path.
func New(path string, v Validator, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	w := &Watcher{
		path:      abs,
		dir:       dir,
		validator: v,
		logger:    log.Nop(),
		events:    make(chan ValidationEvent, 10),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Events returns the channel that delivers validation results. It is closed
// after Stop.
func (w *Watcher) Events() <-chan ValidationEvent {
	return w.events
}

// Check loads and validates the file once.
func (w *Watcher) Check() ValidationEvent {
	ev := ValidationEvent{Path: w.path, Timestamp: time.Now()}
	cfg, err := bidsconfig.Load(w.path)
	if err != nil {
		ev.Err = err
		return ev
	}
	ev.Issues = w.validator.Validate(cfg)
	return ev
}

// Start validates the file once and then again on every change.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if w.stopped {
		return fmt.Errorf("watcher already stopped")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("failed to add directory %s to watcher: %w", w.dir, err)
	}

	w.fsWatcher = fsWatcher
	w.stopChan = make(chan struct{})
	w.running = true

	w.done.Add(1)
	go w.loop()

	w.logger.With(log.F("path", w.path)).Info("Watching rule file")
	return nil
}

func (w *Watcher) loop() {
	defer w.done.Done()
	defer close(w.events)

	w.send(w.Check())
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.send(w.Check())
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("fsnotify watcher error")

		case <-w.stopChan:
			return
		}
	}
}

// send delivers ev unless the watcher is stopping.
func (w *Watcher) send(ev ValidationEvent) {
	logger := w.logger.With(log.F("path", ev.Path), log.F("issues", len(ev.Issues)))
	if ev.Err != nil {
		logger.WithError(ev.Err).Warn("rule file could not be loaded")
	} else {
		logger.Info("rule file validated")
	}

	select {
	case w.events <- ev:
	case <-w.stopChan:
	}
}

// Stop halts watching and closes the event channel.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return
	}
	w.running = false
	w.stopped = true
	close(w.stopChan)
	w.mutex.Unlock()

	w.done.Wait()
	if err := w.fsWatcher.Close(); err != nil {
		w.logger.With(log.F("error", err)).Error("Error closing fsnotify watcher")
	}
	w.logger.Info("Watcher stopped.")
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}
