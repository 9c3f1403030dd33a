package watch

import (
	"fmt"
	"os"
	"sync"
	"time"

	"imagenamer/internal/log"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay quiet before it is reported.
// Image editors and downloads write in several chunks.
const DefaultSettle = 500 * time.Millisecond

// ImageEvent is a file that appeared or changed and has since settled
type ImageEvent struct {
	Path      string
	Info      os.FileInfo
	Timestamp time.Time
	Op        fsnotify.Op
}

// Watcher monitors directories for new or rewritten files using fsnotify
type Watcher struct {
	directories []string

	events   chan ImageEvent
	stopChan chan struct{}

	fsWatcher *fsnotify.Watcher

	// filter decides which paths are worth reporting
	filter func(path string) bool
	settle time.Duration

	// pending holds one timer per path that is still being written
	pending map[string]*pendingEvent

	mutex   sync.RWMutex
	running bool
}

type pendingEvent struct {
	timer *time.Timer
	op    fsnotify.Op
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithFilter only reports paths for which filter returns true.
func WithFilter(filter func(path string) bool) WatcherOption {
	return func(w *Watcher) { w.filter = filter }
}

// WithSettle changes the quiet period before an event is delivered.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// New creates a new directory watcher using fsnotify
func New(opts ...WatcherOption) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		directories: []string{},
		events:      make(chan ImageEvent, 32),
		stopChan:    make(chan struct{}),
		fsWatcher:   fsWatcher,
		filter:      func(string) bool { return true },
		settle:      DefaultSettle,
		pending:     make(map[string]*pendingEvent),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddDirectory adds a directory to watch. Subdirectories are not included;
// fsnotify watches are not recursive.
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	w.mutex.Lock()
	found := false
	for _, existingDir := range w.directories {
		if existingDir == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()
	log.LogWithFields(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// FileChannel returns the channel that delivers settled file events
func (w *Watcher) FileChannel() <-chan ImageEvent {
	return w.events
}

// Start begins the file watching process
func (w *Watcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mutex.Unlock()

	go w.loop(stop)
	log.Debug("Watcher started.")
	return nil
}

func (w *Watcher) loop(stop <-chan struct{}) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// A rename into the folder shows up as Create.
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				if w.filter(event.Name) {
					w.schedule(event.Name, event.Op)
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case <-stop:
			return
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string, op fsnotify.Op) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.running {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.op |= op
		p.timer.Reset(w.settle)
		return
	}
	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(w.settle, func() { w.fire(path) })
	w.pending[path] = p
}

func (w *Watcher) fire(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	p, ok := w.pending[path]
	if !ok || !w.running {
		return
	}
	delete(w.pending, path)

	info, err := os.Stat(path)
	if err != nil {
		// Deleted or renamed away before it settled.
		if !os.IsNotExist(err) {
			log.LogWithFields(log.F("file", path), log.F("error", err)).Error("Error stating file")
		}
		return
	}
	if info.IsDir() {
		return
	}

	select {
	case w.events <- ImageEvent{Path: path, Info: info, Timestamp: time.Now(), Op: p.op}:
	default:
		log.LogWithFields(log.F("file", path)).Warn("Event channel is full, dropped event")
	}
}

// Stop halts the watcher and closes the event channel
func (w *Watcher) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.running {
		return
	}
	w.running = false

	close(w.stopChan)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}

	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
	}

	close(w.events)
	log.Debug("Watcher stopped.")
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the list of directories being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirsCopy := make([]string, len(w.directories))
	copy(dirsCopy, w.directories)
	return dirsCopy
}
