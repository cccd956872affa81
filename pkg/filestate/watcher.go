package filestate

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventKind represents what happened to a tracked document
type EventKind string

const (
	EventChanged EventKind = "changed"
	EventRemoved EventKind = "removed"
)

// Event is delivered once per debounced burst of changes to a tracked path
type Event struct {
	Path string
	Kind EventKind
}

// EventHandler is called from the watcher goroutine
type EventHandler func(Event)

// WatcherConfig holds configuration for the watcher
type WatcherConfig struct {
	StabilityThreshold time.Duration
	OnEvent            EventHandler
	Logger             *zerolog.Logger
}

// Watcher monitors individual document paths. fsnotify watches the parent
// directory so that save-by-rename editors are still observed.
type Watcher struct {
	watcher            *fsnotify.Watcher
	stabilityThreshold time.Duration
	onEvent            EventHandler
	logger             zerolog.Logger

	mu     sync.Mutex
	paths  map[string]int
	dirs   map[string]int
	timers map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a new document watcher
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 250 * time.Millisecond
	}
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Watcher{
		watcher:            watcher,
		stabilityThreshold: config.StabilityThreshold,
		onEvent:            config.OnEvent,
		logger:             logger,
		paths:              make(map[string]int),
		dirs:               make(map[string]int),
		timers:             make(map[string]*time.Timer),
		done:               make(chan struct{}),
	}, nil
}

// Start starts the event loop
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Debug().Dur("stability_threshold", w.stabilityThreshold).Msg("Document watcher started")
}

// Track starts watching path. Tracking is reference counted.
func (w *Watcher) Track(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.paths[path]++

	return nil
}

// Untrack releases one reference to path
func (w *Watcher) Untrack(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] == 0 {
		return
	}
	w.paths[path]--
	if w.paths[path] == 0 {
		delete(w.paths, path)
		if timer, ok := w.timers[path]; ok {
			timer.Stop()
			delete(w.timers, path)
		}
	}

	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.watcher.Remove(dir); err != nil {
			w.logger.Debug().Err(err).Str("dir", dir).Msg("Failed to remove directory watch")
		}
	}
}

// Tracked reports whether path is currently watched
func (w *Watcher) Tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paths[filepath.Clean(path)] > 0
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, timer := range w.timers {
			timer.Stop()
		}
		clear(w.timers)
		w.mu.Unlock()

		if closeErr := w.watcher.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close watcher: %w", closeErr)
		}
		w.wg.Wait()

		w.logger.Debug().Msg("Document watcher stopped")
	})
	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

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
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var kind EventKind
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = EventRemoved
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		kind = EventChanged
	default:
		return
	}

	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] == 0 {
		return
	}

	// Debounce rapid changes to the same file; the last kind wins
	if timer, exists := w.timers[path]; exists {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.stabilityThreshold, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		if w.onEvent != nil {
			w.onEvent(Event{Path: path, Kind: kind})
		}
	})
}
