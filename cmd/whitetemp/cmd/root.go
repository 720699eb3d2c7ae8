package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/whitetemp/internal/config"
	"github.com/jmcleod/whitetemp/storage"
	bboltstorage "github.com/jmcleod/whitetemp/storage/bbolt"
	"github.com/jmcleod/whitetemp/storage/file"
	"github.com/jmcleod/whitetemp/whitelist"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	configPath  string
	listPath    string
	backendName string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "whitetemp",
	Short: "whitetemp grants players temporary access to a game server",
	Long: `Temporary whitelist for multiplayer game servers. Each player is admitted
until an expiration time set by an operator; afterwards the connection is refused.

Run "whitetemp server" next to the game server. The one-shot commands (add,
rem, prolong, check, list) send their command to a running server through its
admin API, and edit the whitelist file directly when no server is running.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&listPath, "list", "", "Whitelist file (overrides list_path)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", `Storage backend, "file" or "bbolt" (overrides backend)`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("list") {
		cfg.ListPath = listPath
	}
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.Level()
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore creates the whitelist's directory if needed, opens the configured
// backend and loads the persisted entries. The returned func releases the
// backend.
func openStore(cfg *config.Config, logger *slog.Logger) (*whitelist.Store, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.ListPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create whitelist directory: %w", err)
	}

	var (
		backend storage.Backend
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendBBolt:
		b, err := bboltstorage.NewBackendFromFile(cfg.ListPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open whitelist database: %w", err)
		}
		backend, closeFn = b, b.Close
	default:
		backend = file.NewBackend(cfg.ListPath)
	}

	store := whitelist.New(backend, whitelist.WithLogger(logger))
	if err := store.Load(); err != nil {
		logger.Warn("starting with an empty whitelist", "error", err)
	}
	return store, closeFn, nil
}
