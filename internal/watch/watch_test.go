package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, opts Options) *int32 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var runs int32
	go Watch(ctx, opts, quietLogger(), func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	time.Sleep(100 * time.Millisecond)
	return &runs
}

func TestWatch_JSONWriteTriggersRun(t *testing.T) {
	root := t.TempDir()
	runs := startWatch(t, Options{Root: root, Debounce: 50 * time.Millisecond})

	_ = os.WriteFile(filepath.Join(root, "note.json"), []byte("{}"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return atomic.LoadInt32(runs) >= 1
	}, "json write did not trigger a run")
}

func TestWatch_BurstIsDebounced(t *testing.T) {
	root := t.TempDir()
	runs := startWatch(t, Options{Root: root, Debounce: 300 * time.Millisecond})

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(root, "n.json"), []byte{byte('0' + i)}, 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return atomic.LoadInt32(runs) >= 1
	}, "burst did not trigger a run")
	time.Sleep(500 * time.Millisecond)
	if got := atomic.LoadInt32(runs); got != 1 {
		t.Errorf("runs = %d, want 1 for one burst", got)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	runs := startWatch(t, Options{Root: root, Debounce: 50 * time.Millisecond})

	_ = os.WriteFile(filepath.Join(root, "photo.png"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(runs); got != 0 {
		t.Errorf("runs = %d, want 0 for a non-json file", got)
	}
}

func TestWatch_IgnoredDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "converted")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	runs := startWatch(t, Options{Root: root, Debounce: 50 * time.Millisecond, Ignore: []string{out}})

	_ = os.WriteFile(filepath.Join(out, "toc.json"), []byte("{}"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(runs); got != 0 {
		t.Errorf("runs = %d, want 0 for writes in an ignored dir", got)
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	runs := startWatch(t, Options{Root: root, Debounce: 50 * time.Millisecond})

	sub := filepath.Join(root, "takeout")
	_ = os.MkdirAll(sub, 0o755)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return atomic.LoadInt32(runs) >= 1
	}, "new dir did not trigger a run")

	before := atomic.LoadInt32(runs)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "deep.json"), []byte("{}"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return atomic.LoadInt32(runs) > before
	}, "json in new subdir did not trigger a run")
}
