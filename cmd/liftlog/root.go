package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"liftlog/internal/auth"
	"liftlog/internal/config"
	"liftlog/internal/repo"
	"liftlog/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "liftlog",
	Short: "Offline-first workout tracker",
	Long: `liftlog keeps workout plans and training history in a local SQLite
database and syncs them with a remote server when one is reachable.

All commands work fully offline; 'liftlog sync' pushes local changes
and pulls remote ones whenever you choose to connect.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// loadConfig reads the configuration named by --config or the default
// search paths.
func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the shared logger: stderr by default, a rotated
// file when log.file is configured.
func newLogger(cfg config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// openStore opens the configured database, applying any pending
// migrations.
func openStore(cfg config.Config, logger *log.Logger) *store.Store {
	s, err := store.Open(cfg.Database.Path, store.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return s
}

// principalFrom builds the local principal from config. Commands that
// need a signed-in user call repo operations with it.
func principalFrom(cfg config.Config) auth.Principal {
	return auth.Principal{UserID: cfg.Remote.UserID}
}

func newRepo(s *store.Store, logger *log.Logger) *repo.Repo {
	return repo.New(s, logger)
}
