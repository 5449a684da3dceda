package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherReloadOnWrite(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	updates := make(chan AppConfig, 1)
	w, err := NewWatcher(path, WatchConfig{Enabled: true}, func(cfg AppConfig) {
		select {
		case updates <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := sampleYAML + "\nreconcile:\n  intervalMs: 250\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Reconcile.IntervalMs != 250 {
			t.Fatalf("reload delivered stale config: %+v", cfg.Reconcile)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload observed")
	}
}

func TestWatcherKeepsOldConfigOnBadReload(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	errs := make(chan error, 1)
	w, err := NewWatcher(path, WatchConfig{Enabled: true}, func(AppConfig) {
		t.Errorf("invalid config must not be delivered")
	}, func(e error) {
		select {
		case errs <- e:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("env: [broken"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatalf("reload error not reported")
	}
	if !w.LastReloadTime().IsZero() {
		t.Fatalf("failed reload must not bump the reload time")
	}
}

func TestWatcherDisabled(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	w, err := NewWatcher(path, WatchConfig{Enabled: false}, nil, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("disabled start must be a no-op: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
