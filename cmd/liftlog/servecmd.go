package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liftlog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference sync server",
	Long: `Run the reference sync server in the foreground.

The server keeps per-user state in memory and speaks the same pull/push
protocol the client uses, which makes it handy for development and for
small self-hosted setups. Clients authenticate with a bearer token
minted from the configured JWT secret. A WebSocket endpoint at /ws
streams sync activity.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if cfg.Server.JWTSecret == "" {
			fmt.Fprintf(os.Stderr, "Error: server.jwt_secret must be configured\n")
			os.Exit(1)
		}
		logger := newLogger(cfg, "[server] ")

		srv, err := server.New(&server.Config{
			Port:      cfg.Server.Port,
			JWTSecret: []byte(cfg.Server.JWTSecret),
			TokenTTL:  server.DefaultConfig().TokenTTL,
			Logger:    logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Sync server listening on :%d; Ctrl-C to stop\n", cfg.Server.Port)
		if err := srv.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error running server: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
