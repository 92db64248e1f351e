// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/baduk-analyzer/internal/book"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Inspect the bundled opening book",
}

var bookStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show opening book entry counts per board size",
	RunE:  runBookStats,
}

func runBookStats(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if path, _ := cmd.Flags().GetString("book"); path != "" {
		cfg.Book.Path = path
	}
	if cfg.Book.Path == "" {
		return fmt.Errorf("no opening book configured (set book.path or pass --book)")
	}

	ix := book.NewIndex(cfg.Book.FirstMoves, newLogger())
	if err := ix.Load(cfg.Book.Path); err != nil {
		return err
	}
	ix.FormatStats(os.Stdout)
	return nil
}

func init() {
	bookStatsCmd.Flags().String("book", "", "book file to inspect (default from config)")
	bookCmd.AddCommand(bookStatsCmd)
	rootCmd.AddCommand(bookCmd)
}
