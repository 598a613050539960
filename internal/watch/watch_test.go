package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// counter is a goroutine-safe call counter.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func testConfig() *Config {
	return &Config{
		DebounceInterval: 20 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[test] ", 0),
	}
}

// startTestWatcher runs a watcher over a fresh export file and returns the
// counters plus the export path.
func startTestWatcher(t *testing.T) (refreshes, reconciles *counter, exportPath string) {
	t.Helper()

	exportPath = filepath.Join(t.TempDir(), "following.json")
	if err := os.WriteFile(exportPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("failed to write export file: %v", err)
	}

	refreshes = &counter{}
	reconciles = &counter{}

	w, err := New(exportPath, refreshes.inc, reconciles.inc, testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Initial reconcile happens before watching begins.
	if !waitFor(t, 5*time.Second, func() bool { return reconciles.get() >= 1 }) {
		t.Fatal("initial reconcile never ran")
	}

	return refreshes, reconciles, exportPath
}

func TestWatcherRunsInitialReconcile(t *testing.T) {
	refreshes, reconciles, _ := startTestWatcher(t)

	if got := reconciles.get(); got < 1 {
		t.Errorf("reconciles = %d, want at least 1", got)
	}
	// The initial run is not a refresh.
	if got := refreshes.get(); got != 0 {
		t.Errorf("refreshes = %d, want 0 before any file change", got)
	}
}

func TestWatcherReconcilesOnExportChange(t *testing.T) {
	refreshes, reconciles, exportPath := startTestWatcher(t)

	if err := os.WriteFile(exportPath, []byte(`{"text_post_app_text_post_app_following":[]}`), 0600); err != nil {
		t.Fatalf("failed to rewrite export file: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return reconciles.get() >= 2 }) {
		t.Fatal("reconcile never triggered by export change")
	}
	if !waitFor(t, 5*time.Second, func() bool { return refreshes.get() >= 1 }) {
		t.Fatal("cache refresh never triggered by export change")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	_, reconciles, exportPath := startTestWatcher(t)

	other := filepath.Join(filepath.Dir(exportPath), "unrelated.json")
	if err := os.WriteFile(other, []byte(`{}`), 0600); err != nil {
		t.Fatalf("failed to write unrelated file: %v", err)
	}

	// Give the debounce loop a few ticks to (wrongly) fire.
	time.Sleep(100 * time.Millisecond)
	if got := reconciles.get(); got != 1 {
		t.Errorf("reconciles = %d, want 1 (unrelated file must not trigger)", got)
	}
}

func TestNewValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	if _, err := New("", noop, noop, nil); err == nil {
		t.Error("expected error for empty export path")
	}
	if _, err := New("x.json", nil, noop, nil); err == nil {
		t.Error("expected error for nil refresh func")
	}
	if _, err := New("x.json", noop, nil, nil); err == nil {
		t.Error("expected error for nil reconcile func")
	}
}
