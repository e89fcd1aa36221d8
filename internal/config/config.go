// Package config loads spriteforge configuration from a TOML file with
// defaults applied first, so a partial file only overrides what it
// names. The API key can always be supplied through the environment
// instead of the file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pixeldrift/spriteforge/pkg/cache"
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
)

// APIKeyEnv is the environment variable that overrides the configured
// API key.
const APIKeyEnv = "SPRITEFORGE_API_KEY"

// Config is the full application configuration.
type Config struct {
	Service  Service  `toml:"service"`
	Cache    CacheCfg `toml:"cache"`
	Playback Playback `toml:"playback"`
	Server   Server   `toml:"server"`
}

// Service configures the generation service client.
type Service struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// CacheCfg configures sheet caching. When RedisAddr is set the Redis
// backend is used; otherwise sheets are cached under Dir.
type CacheCfg struct {
	Dir       string `toml:"dir"`
	RedisAddr string `toml:"redis_addr"`
	TTLHours  int    `toml:"ttl_hours"`
}

// Playback configures playback defaults for the CLI.
type Playback struct {
	FPS     float64 `toml:"fps"`
	Columns int     `toml:"columns"`
	Rows    int     `toml:"rows"`
}

// Server configures the serve mode.
type Server struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Service: Service{
			BaseURL: "https://api.spriteforge.dev",
		},
		Cache: CacheCfg{
			TTLHours: 7 * 24,
		},
		Playback: Playback{
			FPS:     8,
			Columns: 4,
			Rows:    4,
		},
		Server: Server{
			Addr: ":8480",
		},
	}
}

// DefaultPath returns the conventional config file location,
// ~/.config/spriteforge/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "spriteforge", "config.toml"), nil
}

// Load reads configuration from path, layered over the defaults. An
// empty path falls back to [DefaultPath] if that file exists; a
// missing explicit path is an error, a missing default path is not.
// The SPRITEFORGE_API_KEY environment variable overrides the file's
// API key either way.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, sferrors.Wrap(sferrors.ErrCodeInvalidInput, err, "parse config %s", path)
			}
		} else if explicit {
			return Config{}, sferrors.Wrap(sferrors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Service.APIKey = key
	}

	return cfg, nil
}

// CacheTTL returns the configured sheet cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// CacheDir returns the configured cache directory, defaulting to
// ~/.cache/spriteforge/sheets.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "spriteforge", "sheets"), nil
}

// OpenCache builds the configured sheet cache backend: Redis when an
// address is set, the file backend otherwise.
func (c Config) OpenCache() (cache.Cache, error) {
	if c.Cache.RedisAddr != "" {
		return cache.NewRedisCache(c.Cache.RedisAddr, "spriteforge:"), nil
	}
	dir, err := c.CacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}
