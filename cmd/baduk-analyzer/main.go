// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the baduk-analyzer CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/baduk-analyzer/internal/analyzer"
	"github.com/pdiddy/baduk-analyzer/internal/book"
	"github.com/pdiddy/baduk-analyzer/internal/cache"
	"github.com/pdiddy/baduk-analyzer/internal/engine"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the baduk-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "baduk-analyzer",
	Short: "Offline Go position analysis with a book, cache, and engine",
	Long: `baduk-analyzer answers "what is the best move here?" for Go positions
without a network connection. Every request walks a three-layer chain:
the bundled opening book, a local SQLite cache of past analyses, and
finally a local engine (KataGo) for fresh computation. Positions are
canonicalized under the board's 8 symmetries, so a result computed for
one orientation answers all of them.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./baduk-analyzer.yaml or ~/.config/baduk-analyzer/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("baduk-analyzer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "baduk-analyzer"))
		}
	}

	viper.SetEnvPrefix("BADUK_ANALYZER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the merged file/env/flag configuration.
func loadConfig() types.Config {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Ignoring unreadable config:", err)
	}
	return cfg.WithDefaults()
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildAnalyzer assembles the lookup chain. A missing or unreadable book
// degrades to the remaining layers; withEngine=false keeps the engine
// subprocess out of commands that never need it.
func buildAnalyzer(cfg types.Config, withEngine bool) (*analyzer.Analyzer, error) {
	log := newLogger()

	var ix *book.Index
	if cfg.Book.Path != "" {
		ix = book.NewIndex(cfg.Book.FirstMoves, log)
		if err := ix.Load(cfg.Book.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (continuing without the book)\n", err)
		}
	}

	store, err := cache.NewStore(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	var eng engine.Engine
	if withEngine {
		g, err := engine.NewGTP(cfg.Engine, log)
		switch {
		case err == nil:
			eng = g
		case cfg.Engine.Enabled:
			fmt.Fprintf(os.Stderr, "Warning: %v (book and cache only)\n", err)
		}
	}

	return analyzer.New(ix, store, eng, cfg.Analysis, cfg.Engine.AnalysisTimeout, log), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
