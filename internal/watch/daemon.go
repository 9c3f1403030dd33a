package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imagenamer/internal/batch"
	"imagenamer/internal/log"
	"imagenamer/pkg/types"
)

// Processor names and renames a set of images. *batch.Runner implements it.
type Processor interface {
	Run(ctx context.Context, items []batch.Item) (batch.Result, error)
}

// DaemonStatus represents the current status of the daemon
type DaemonStatus struct {
	Running          bool      // Whether the daemon is currently active
	WatchDirectories []string  // Directories being watched
	LastActivity     time.Time // Time of last file activity
	FilesProcessed   int       // Total images processed
	FilesRenamed     int       // Images that got a new name
}

// Daemon renames images as they appear in the watched folders
type Daemon struct {
	watcher *Watcher
	proc    Processor

	processed    int
	renamed      int
	lastActivity time.Time

	// produced holds paths the daemon itself created by renaming, so their
	// Create events are not processed again.
	produced map[string]struct{}

	callback func(rec types.RenameRecord, err error)

	mutex   sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDaemon creates a daemon that hands every settled file accepted by
// filter to proc.
func NewDaemon(proc Processor, filter func(path string) bool, opts ...WatcherOption) (*Daemon, error) {
	watcher, err := New(append([]WatcherOption{WithFilter(filter)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Daemon{
		watcher:      watcher,
		proc:         proc,
		lastActivity: time.Now(),
		produced:     make(map[string]struct{}),
	}, nil
}

// AddWatchDirectory adds a directory to be watched
func (d *Daemon) AddWatchDirectory(dir string) error {
	return d.watcher.AddDirectory(dir)
}

// AddTree watches root and, when recursive, every subdirectory below it
// except hidden ones.
func (d *Daemon) AddTree(root string, recursive bool) error {
	if !recursive {
		return d.AddWatchDirectory(root)
	}
	return filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(e.Name(), ".") {
			return filepath.SkipDir
		}
		return d.AddWatchDirectory(path)
	})
}

// SetCallback sets a function to be called after each image is processed
func (d *Daemon) SetCallback(cb func(rec types.RenameRecord, err error)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = cb
}

// Start begins processing events until ctx is cancelled or Stop is called
func (d *Daemon) Start(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}
	if len(d.watcher.GetDirectories()) == 0 {
		return fmt.Errorf("no directories to watch")
	}
	if err := d.watcher.Start(); err != nil {
		return fmt.Errorf("error starting watcher: %w", err)
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.running = true

	go d.processEvents(ctx, d.done)
	return nil
}

// Stop halts the daemon and waits for the image in flight to finish
func (d *Daemon) Stop() {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return
	}
	d.running = false
	d.cancel()
	done := d.done
	d.mutex.Unlock()

	d.watcher.Stop()
	<-done
}

// Status returns the current status of the daemon
func (d *Daemon) Status() DaemonStatus {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return DaemonStatus{
		Running:          d.running,
		WatchDirectories: d.watcher.GetDirectories(),
		LastActivity:     d.lastActivity,
		FilesProcessed:   d.processed,
		FilesRenamed:     d.renamed,
	}
}

func (d *Daemon) processEvents(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for ev := range d.watcher.FileChannel() {
		if ctx.Err() != nil {
			continue // drain until the watcher closes the channel
		}
		d.handle(ctx, ev)
	}
}

func (d *Daemon) handle(ctx context.Context, ev ImageEvent) {
	d.mutex.Lock()
	if _, ok := d.produced[ev.Path]; ok {
		delete(d.produced, ev.Path)
		d.mutex.Unlock()
		return
	}
	d.lastActivity = ev.Timestamp
	d.mutex.Unlock()

	res, err := d.proc.Run(ctx, []batch.Item{{Path: ev.Path, Size: ev.Info.Size()}})
	if err != nil {
		log.LogWithError(err).With(log.F("path", ev.Path)).Error("watch: processing failed")
	}

	d.mutex.Lock()
	for _, rec := range res.Records {
		d.processed++
		if rec.Status == types.StatusCompleted {
			d.renamed++
			d.produced[rec.Path] = struct{}{}
		}
	}
	cb := d.callback
	d.mutex.Unlock()

	if cb != nil {
		for _, rec := range res.Records {
			cb(rec, err)
		}
	}
}
