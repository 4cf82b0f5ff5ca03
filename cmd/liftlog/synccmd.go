package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"liftlog/internal/sync"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the local database with the remote server",
	Long: `Run one pull/push cycle against the configured remote server.

With --watch, keep running: a cycle fires on every configured interval
and shortly after any local change, batching rapid edits together.
Stop with Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[sync] ")
		s := openStore(cfg, logger)
		defer s.Close()

		transport := sync.NewHTTPTransport(cfg.Remote.URL, cfg.Remote.Token)
		engine := sync.NewEngine(s, transport, logger)

		if !syncWatch {
			start := time.Now()
			res, err := engine.Sync(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("   Pulled: %d\n", res.Pulled)
			fmt.Printf("   Pushed: %d\n", res.Pushed)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		daemon := sync.NewDaemon(engine, &sync.DaemonConfig{
			Interval:         cfg.Sync.Interval,
			DebounceInterval: cfg.Sync.Debounce,
			Logger:           logger,
		})
		fmt.Printf("Watching for changes (interval %s); Ctrl-C to stop\n", cfg.Sync.Interval)
		if err := daemon.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error running sync daemon: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep syncing on changes and intervals")
	rootCmd.AddCommand(syncCmd)
}
