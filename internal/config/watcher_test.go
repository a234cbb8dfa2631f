package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/railvox/internal/config"
)

const (
	watcherValidYAML = `
server:
  log_level: info
respond:
  templates:
    fare: "{{.fare}} rupees."
`
	watcherUpdatedYAML = `
server:
  log_level: debug
respond:
  templates:
    fare: "Rs {{.fare}}."
`
	watcherInvalidYAML = `
server:
  log_level: bananas
`
)

// writeFile writes content and moves the mtime forward by step so that
// consecutive writes are told apart on coarse-grained filesystems.
func writeFile(t *testing.T, path, content string, step int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	mtime := time.Now().Add(time.Duration(step) * time.Second)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

// startWatcher runs a watcher on a fresh file holding content until the
// test ends. onChange calls are forwarded on the returned channel.
func startWatcher(t *testing.T, content string) (*config.Watcher, string, <-chan [2]*config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "railvox.yaml")
	writeFile(t, path, content, 0)

	changes := make(chan [2]*config.Config, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- [2]*config.Config{old, new}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() { w.Run(ctx) })
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return w, path, changes
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	w, _, _ := startWatcher(t, watcherValidYAML)
	if cfg := w.Current(); cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v", cfg)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	w, path, changes := startWatcher(t, watcherValidYAML)
	writeFile(t, path, watcherUpdatedYAML, 1)

	var got [2]*config.Config
	select {
	case got = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	d := config.Diff(got[0], got[1])
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug || !d.TemplatesChanged {
		t.Errorf("diff = %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level = %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()

	w, path, changes := startWatcher(t, watcherValidYAML)
	writeFile(t, path, watcherInvalidYAML, 1)

	select {
	case <-changes:
		t.Fatal("callback invoked for invalid config")
	case <-time.After(200 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level = %q, want the old info", w.Current().Server.LogLevel)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()

	_, path, changes := startWatcher(t, watcherValidYAML)
	writeFile(t, path, watcherValidYAML, 1)

	select {
	case <-changes:
		t.Fatal("callback invoked for identical content")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	if _, err := config.NewWatcher("/nonexistent/railvox.yaml", nil); err == nil {
		t.Fatal("NewWatcher(missing): want error")
	}
}
