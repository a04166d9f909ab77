package cliconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfigFile(t, path, `language = "en"`)

	reloaded := make(chan Config, 1)
	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	w.debounce = 10 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, `language = "de"`+"\n"+`batch_threshold = 7`)

	select {
	case cfg := <-reloaded:
		if cfg.Language != "de" {
			t.Errorf("Language = %v, want de", cfg.Language)
		}
		if cfg.BatchThreshold != 7 {
			t.Errorf("BatchThreshold = %v, want 7", cfg.BatchThreshold)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherKeepsPinnedFlags(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfigFile(t, path, `language = "en"`)

	base := DefaultConfig()
	base.Language = "sv" // set via flag

	reloaded := make(chan Config, 1)
	w := NewWatcher(path, base, map[string]bool{"language": true}, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	w.debounce = 10 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, `language = "de"`)

	select {
	case cfg := <-reloaded:
		if cfg.Language != "sv" {
			t.Errorf("Language = %v, want sv (flag pinned)", cfg.Language)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherIgnoresBrokenFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfigFile(t, path, `language = "en"`)

	reloaded := make(chan Config, 4)
	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(cfg Config) {
		reloaded <- cfg
	}, nil)
	w.debounce = 10 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, `language = not valid toml`)

	// The broken write must not produce a callback; a later good write must.
	writeConfigFile(t, path, `language = "fr"`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Language == "fr" {
				return
			}
			t.Fatalf("unexpected reload with Language = %v", cfg.Language)
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatcherStopTerminates(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	writeConfigFile(t, path, `language = "en"`)

	w := NewWatcher(path, DefaultConfig(), map[string]bool{}, func(Config) {}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
