package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"liftlog/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database and sync status",
	Long: `Display the local database location, schema version, number of
records awaiting push per table, and the time of the last successful
pull.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg, "[liftlog] ")

		info, err := os.Stat(cfg.Database.Path)
		if os.IsNotExist(err) {
			fmt.Println("Database not initialized; run 'liftlog init'")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading database file: %v\n", err)
			os.Exit(1)
		}

		s := openStore(cfg, logger)
		defer s.Close()

		ctx := context.Background()
		version, err := s.SchemaVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading schema version: %v\n", err)
			os.Exit(1)
		}

		engine := sync.NewEngine(s, nil, logger)
		dirty, err := engine.DirtyCounts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting pending changes: %v\n", err)
			os.Exit(1)
		}
		watermark, err := engine.Watermark(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading sync watermark: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Database: %s (%d bytes, schema v%d)\n", s.Path(), info.Size(), version)
		if watermark == 0 {
			fmt.Println("Last pull: never")
		} else {
			fmt.Printf("Last pull: %s\n",
				time.UnixMilli(watermark).Format("2006-01-02 15:04:05"))
		}
		if len(dirty) == 0 {
			fmt.Println("Pending push: nothing")
			return
		}
		fmt.Println("Pending push:")
		tables := make([]string, 0, len(dirty))
		for table := range dirty {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Printf("   %s: %d\n", table, dirty[table])
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
