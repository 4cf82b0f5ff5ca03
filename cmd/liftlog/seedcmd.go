package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"liftlog/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the bundled exercise library",
	Long: `Load the bundled exercise dataset into the local database. Skipped
when the library already contains exercises.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[liftlog] ")
		s := openStore(cfg, logger)
		defer s.Close()

		n, err := seed.Load(context.Background(), newRepo(s, logger), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding exercises: %v\n", err)
			os.Exit(1)
		}
		if n == 0 {
			fmt.Println("Exercise library already seeded")
			return
		}
		fmt.Printf("Seeded %d exercises\n", n)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
