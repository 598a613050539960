// Package watch re-runs reconciliation whenever the Threads export file
// changes.
//
// The watcher:
// 1. Performs an initial reconcile on startup
// 2. Watches the export file's directory for changes to the file
// 3. Debounces rapid rewrites (exports are replaced, not appended)
// 4. Clears the Threads cache rows and reconciles again per change
// 5. Handles graceful shutdown
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds configuration for the watcher.
type Config struct {
	// DebounceInterval is how long to wait after the last file event
	// before reconciling. Export files are written in one burst, so this
	// batches the burst into a single run.
	DebounceInterval time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// RunFunc is one blocking step of the watch loop: either clearing the
// stale cache rows or running a reconcile pass.
type RunFunc func(ctx context.Context) error

// Watcher triggers reconcile runs off export file changes.
//
// Runs are serialized on the watcher's own goroutine; a change arriving
// mid-run is picked up by the next debounce tick.
type Watcher struct {
	exportPath string
	refresh    RunFunc // clears the export's platform rows so the new file is re-read
	reconcile  RunFunc // one reconcile pass
	config     *Config

	watcher   *fsnotify.Watcher
	pendingMu sync.Mutex
	pendingAt time.Time
	pending   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher over the given export file.
func New(exportPath string, refresh, reconcile RunFunc, config *Config) (*Watcher, error) {
	if exportPath == "" {
		return nil, fmt.Errorf("exportPath cannot be empty")
	}
	if refresh == nil || reconcile == nil {
		return nil, fmt.Errorf("refresh and reconcile funcs cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		exportPath: exportPath,
		refresh:    refresh,
		reconcile:  reconcile,
		config:     config,
		watcher:    watcher,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins watching. An initial reconcile runs before any watching so
// the watcher is never behind the current export file.
//
// This blocks until ctx is cancelled or an error occurs.
func (w *Watcher) Start(ctx context.Context) error {
	w.config.Logger.Println("Starting watcher")

	if err := w.reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile failed: %w", err)
	}

	// Watch the directory, not the file: exports are replaced atomically,
	// which unregisters a direct file watch on most platforms.
	if err := w.watcher.Add(filepath.Dir(w.exportPath)); err != nil {
		return fmt.Errorf("failed to watch export directory: %w", err)
	}

	w.config.Logger.Printf("Watching: %s", w.exportPath)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processPending()

	select {
	case <-ctx.Done():
		w.config.Logger.Println("Shutdown signal received")
		return w.Stop()
	case <-w.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.config.Logger.Println("Stopping watcher")

	w.cancel()

	if err := w.watcher.Close(); err != nil {
		w.config.Logger.Printf("Error closing watcher: %v", err)
	}

	w.wg.Wait()

	w.config.Logger.Println("Watcher stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			// Only the export file itself matters.
			if filepath.Base(event.Name) != filepath.Base(w.exportPath) {
				continue
			}

			w.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			w.queueChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange marks a pending reconcile with debouncing.
func (w *Watcher) queueChange() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending = true
	w.pendingAt = time.Now()
}

// processPending runs the reconcile once the debounce window has passed.
func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if !w.takePending() {
				continue
			}

			w.config.Logger.Println("Export file changed, reconciling")
			if err := w.refresh(w.ctx); err != nil {
				w.config.Logger.Printf("Error clearing cache: %v", err)
				continue
			}
			if err := w.reconcile(w.ctx); err != nil {
				w.config.Logger.Printf("Error reconciling: %v", err)
			}
		}
	}
}

// takePending consumes the pending flag if the debounce window has passed.
func (w *Watcher) takePending() bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if !w.pending || time.Since(w.pendingAt) < w.config.DebounceInterval {
		return false
	}
	w.pending = false
	return true
}
