package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"liftlog/internal/seed"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local database and seed the exercise library",
	Long: `Create the local database at the configured path, apply the schema,
and load the bundled exercise library. Safe to run repeatedly: an
existing database is migrated in place and seeding is skipped when the
library already has exercises.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[liftlog] ")
		s := openStore(cfg, logger)
		defer s.Close()

		ctx := context.Background()
		version, err := s.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
			os.Exit(1)
		}

		r := newRepo(s, logger)
		n, err := seed.Load(ctx, r, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding exercises: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database ready at %s (schema v%d)\n", s.Path(), version)
		if n > 0 {
			fmt.Printf("Seeded %d exercises\n", n)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
