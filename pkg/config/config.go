// Package config loads server and processing configuration.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then environment variables (GEOCLEAR_*). Later layers win. The CLI loads a
// .env file before this package reads the environment, so local overrides
// live next to the binary during development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/geoclear/engine/pkg/errors"
)

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// CacheConfig selects and configures the result cache backend.
type CacheConfig struct {
	// Backend is one of "none", "file", or "redis".
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// HistoryConfig selects the run history store.
type HistoryConfig struct {
	// Backend is one of "memory" or "mongo".
	Backend  string `toml:"backend"`
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
	// MemoryCapacity bounds the in-memory store.
	MemoryCapacity int `toml:"memory_capacity"`
}

// Processing carries the pipeline defaults applied when a request omits them.
type Processing struct {
	MinClearance    float64 `toml:"min_clearance"`
	ForceStrength   float64 `toml:"force_strength"`
	AngleThreshold  float64 `toml:"angle_threshold"`
	SnapTolerance   float64 `toml:"snap_tolerance"`
	MaxDisplacement float64 `toml:"max_displacement"`
	Workers         int     `toml:"workers"`
}

// Config is the full application configuration.
type Config struct {
	Server     Server        `toml:"server"`
	Cache      CacheConfig   `toml:"cache"`
	History    HistoryConfig `toml:"history"`
	Processing Processing    `toml:"processing"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "none",
			TTL:     time.Hour,
		},
		History: HistoryConfig{
			Backend:        "memory",
			Database:       "geoclear",
			MemoryCapacity: 100,
		},
		Processing: Processing{
			MinClearance:   2.0,
			ForceStrength:  1.0,
			AngleThreshold: 15.0,
			SnapTolerance:  0.1,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// environment overrides. An empty path skips the file layer; a named file
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if os.IsNotExist(err) {
				return cfg, errors.New(errors.ErrCodeInvalidConfig, "config file %q not found", path)
			}
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %q", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEOCLEAR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GEOCLEAR_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("GEOCLEAR_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("GEOCLEAR_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("GEOCLEAR_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("GEOCLEAR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = db
		}
	}
	if v := os.Getenv("GEOCLEAR_HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("GEOCLEAR_MONGO_URI"); v != "" {
		c.History.MongoURI = v
	}
	if v := os.Getenv("GEOCLEAR_MONGO_DATABASE"); v != "" {
		c.History.Database = v
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "none", "file", "redis":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache backend redis requires redis_addr")
	}

	switch c.History.Backend {
	case "memory", "mongo":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown history backend %q", c.History.Backend)
	}
	if c.History.Backend == "mongo" && c.History.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "history backend mongo requires mongo_uri")
	}
	return nil
}
