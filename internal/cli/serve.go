package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/geoclear/engine/pkg/cache"
	"github.com/geoclear/engine/pkg/config"
	"github.com/geoclear/engine/pkg/history"
	"github.com/geoclear/engine/pkg/pipeline"
	"github.com/geoclear/engine/pkg/server"
)

// newServeCmd creates the serve command, which starts the HTTP API server.
func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the geoclear HTTP API server.

Configuration is layered: built-in defaults, then the TOML file given with
--config, then GEOCLEAR_* environment variables. A .env file in the working
directory is loaded first if present.

Examples:
  geoclear serve                          # Defaults, listen on :8080
  geoclear serve --config geoclear.toml   # With a config file
  geoclear serve --addr :9000             # Override the listen address`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	// Local development overrides; absence of a .env file is not an error.
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	resultCache, err := buildCache(cmd, cfg.Cache)
	if err != nil {
		return err
	}
	defer resultCache.Close()

	store, err := buildHistory(cmd, cfg.History)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	runner := pipeline.NewRunner(logger)
	srv := server.New(cfg.Server, runner, logger,
		server.WithCache(resultCache, cfg.Cache.TTL),
		server.WithHistory(store),
		server.WithProcessingDefaults(cfg.Processing),
	)

	logger.Infof("Listening on %s (cache=%s, history=%s)", cfg.Server.Addr, cfg.Cache.Backend, cfg.History.Backend)
	return srv.Run(ctx)
}

// buildCache constructs the configured result cache backend.
func buildCache(cmd *cobra.Command, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return cache.NewNullCache(), nil
	case "file":
		dir := cfg.Dir
		if dir == "" {
			var err error
			dir, err = defaultCacheDir()
			if err != nil {
				return nil, err
			}
		}
		return cache.NewFileCache(dir)
	case "redis":
		return cache.NewRedisCache(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// buildHistory constructs the configured run history store.
func buildHistory(cmd *cobra.Command, cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		capacity := cfg.MemoryCapacity
		if capacity <= 0 {
			capacity = history.DefaultMemoryCapacity
		}
		return history.NewMemoryStore(capacity), nil
	case "mongo":
		return history.NewMongoStore(cmd.Context(), cfg.MongoURI, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// defaultCacheDir returns the per-user cache directory for geoclear.
func defaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("get user cache dir: %w", err)
	}
	return filepath.Join(base, "geoclear"), nil
}
