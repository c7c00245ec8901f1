package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"timeblock/internal/platform/config"
	apperrors "timeblock/internal/platform/errors"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	path := filepath.Join(dir, ".timeblock", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := config.New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.Scope != config.DefaultScope || cfg.Store != "sqlite" || cfg.TickInterval != time.Second || cfg.Notifier != "auto" || cfg.Audio != "bell" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DBPath != filepath.Join(dir, ".timeblock", "timeblock.db") {
		t.Fatalf("db path = %s", cfg.DBPath)
	}
}

func TestOverlay(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeConfig(t, dir, "scope: desk\ndb_path: plans.db\nstore: memory\ntick_interval: 250ms\npoll_interval: 2s\nnotifier: none\naudio: none\nlog_level: debug\n")
	cfg, err := config.New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.Scope != "desk" || cfg.Store != "memory" || cfg.TickInterval != 250*time.Millisecond || cfg.PollInterval != 2*time.Second {
		t.Fatalf("overlay = %+v", cfg)
	}
	if cfg.DBPath != filepath.Join(dir, "plans.db") || cfg.Notifier != "none" || cfg.Audio != "none" || cfg.LogLevel != "debug" {
		t.Fatalf("overlay = %+v", cfg)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	t.Parallel()
	for _, body := range []string{
		"store: postgres\n",
		"notifier: pager\n",
		"audio: trumpet\n",
		"tick_interval: soon\n",
		"tick_interval: -1s\n",
	} {
		dir := t.TempDir()
		writeConfig(t, dir, body)
		if _, err := config.New(dir); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("config %q: %v", body, err)
		}
	}
	if _, err := config.New(""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty data dir: %v", err)
	}
	dir := t.TempDir()
	writeConfig(t, dir, "scope: [unterminated\n")
	if _, err := config.New(dir); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
