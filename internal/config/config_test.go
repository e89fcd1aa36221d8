package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Service.BaseURL == "" {
		t.Error("default base URL should be set")
	}
	if cfg.Playback.FPS != 8 {
		t.Errorf("default fps = %g, want 8", cfg.Playback.FPS)
	}
	if cfg.Playback.Columns != 4 || cfg.Playback.Rows != 4 {
		t.Errorf("default grid = %dx%d, want 4x4", cfg.Playback.Columns, cfg.Playback.Rows)
	}
	if cfg.Server.Addr != ":8480" {
		t.Errorf("default addr = %q, want :8480", cfg.Server.Addr)
	}
	if cfg.CacheTTL() != 7*24*time.Hour {
		t.Errorf("default TTL = %v, want one week", cfg.CacheTTL())
	}
}

func TestLoadPartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[service]
base_url = "http://localhost:9000"

[playback]
fps = 12.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Service.BaseURL != "http://localhost:9000" {
		t.Errorf("base URL = %q, want overridden value", cfg.Service.BaseURL)
	}
	if cfg.Playback.FPS != 12 {
		t.Errorf("fps = %g, want 12", cfg.Playback.FPS)
	}

	// Values the file does not name keep their defaults.
	if cfg.Playback.Columns != 4 {
		t.Errorf("columns = %d, want default 4", cfg.Playback.Columns)
	}
	if cfg.Server.Addr != ":8480" {
		t.Errorf("addr = %q, want default :8480", cfg.Server.Addr)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing explicit path")
	}
	if !sferrors.Is(err, sferrors.ErrCodeInvalidInput) {
		t.Errorf("error code = %q, want INVALID_INPUT", sferrors.GetCode(err))
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed TOML")
	}
}

func TestLoadEnvKeyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[service]
api_key = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(APIKeyEnv, "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Service.APIKey != "from-env" {
		t.Errorf("api key = %q, environment should win", cfg.Service.APIKey)
	}
}

func TestCacheDirConfigured(t *testing.T) {
	cfg := Default()
	cfg.Cache.Dir = "/tmp/custom-cache"

	dir, err := cfg.CacheDir()
	if err != nil {
		t.Fatalf("CacheDir() failed: %v", err)
	}
	if dir != "/tmp/custom-cache" {
		t.Errorf("dir = %q, want configured path", dir)
	}
}

func TestOpenCacheFileBackend(t *testing.T) {
	cfg := Default()
	cfg.Cache.Dir = t.TempDir()

	c, err := cfg.OpenCache()
	if err != nil {
		t.Fatalf("OpenCache() failed: %v", err)
	}
	defer c.Close()
}
