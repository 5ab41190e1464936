package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if resolved != missing {
		t.Fatalf("resolved path = %q, want %q", resolved, missing)
	}
	if cfg.Images.Provider != "leonardo" {
		t.Fatalf("default provider = %q", cfg.Images.Provider)
	}
	if !cfg.Images.Fallback {
		t.Fatal("fallback should default on")
	}
	if cfg.Images.Leonardo.Width != 864 || cfg.Images.Leonardo.Height != 1536 {
		t.Fatalf("unexpected leonardo resolution %dx%d", cfg.Images.Leonardo.Width, cfg.Images.Leonardo.Height)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
base_dir = "` + filepath.Join(dir, "stories") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[images]
provider = "FLUX"
workers = 4

[video]
image_order = "mtime"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Images.Provider != "flux" {
		t.Fatalf("provider not lowercased: %q", cfg.Images.Provider)
	}
	if cfg.Images.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Images.Workers)
	}
	if cfg.Video.ImageOrder != "mtime" {
		t.Fatalf("image_order = %q", cfg.Video.ImageOrder)
	}
	if cfg.Workflow.QueuePollInterval != 5 {
		t.Fatalf("poll interval default missing: %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Images.Provider = "dalle"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "images.provider") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresLocalModelPath(t *testing.T) {
	cfg := config.Default()
	cfg.Images.Provider = "localsd"
	cfg.Images.LocalSD.ModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("localsd without model path must fail validation")
	}
}

func TestEnvFallbackForAPIKeys(t *testing.T) {
	t.Setenv("LEONARDO_API_KEY", "from-env")
	missing := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Images.Leonardo.APIKey != "from-env" {
		t.Fatalf("leonardo api key = %q", cfg.Images.Leonardo.APIKey)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BaseDir = filepath.Join(dir, "stories")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.MusicDir = filepath.Join(dir, "music")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.BaseDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q", p)
		}
	}
	if got := cfg.QueueDatabasePath(); got != filepath.Join(cfg.Paths.LogDir, "queue.db") {
		t.Fatalf("queue db path = %q", got)
	}
}
