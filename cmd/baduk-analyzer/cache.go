// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/baduk-analyzer/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local analysis cache (stats, clear, export, merge)",
	Long: `Cache manages the SQLite database of past analysis results. Use
subcommands to inspect, prune, export, or merge caches from other
installations.`,
}

func openStore() (*cache.Store, error) {
	cfg := loadConfig()
	return cache.NewStore(cfg.Cache, newLogger())
}

// --- stats subcommand ---

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and entry counts",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("cache: %s (%.1f KB)\n", stats.Path, float64(stats.DBSizeBytes)/1024)
	fmt.Printf("entries: %d\n", stats.TotalEntries)

	sizes := make([]int, 0, len(stats.ByBoardSize))
	for size := range stats.ByBoardSize {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	for _, size := range sizes {
		fmt.Printf("  %dx%d: %d\n", size, size, stats.ByBoardSize[size])
	}

	models := make([]string, 0, len(stats.ByModel))
	for model := range stats.ByModel {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		fmt.Printf("  %s: %d\n", model, stats.ByModel[model])
	}
	return nil
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached entries (all, or one position key)",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	key, _ := cmd.Flags().GetString("key")
	if key != "" {
		n, err := store.Delete(context.Background(), key)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d entries for %s\n", n, key)
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("refusing to clear the whole cache without --yes")
	}
	n, err := store.Clear(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d entries\n", n)
	return nil
}

// --- export subcommand ---

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cache to YAML or JSON on stdout",
	RunE:  runCacheExport,
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	var f cache.ExportFormat
	switch format {
	case "yaml", "":
		f = cache.ExportYAML
	case "json":
		f = cache.ExportJSON
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	n, err := store.Export(context.Background(), os.Stdout, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d entries\n", n)
	return nil
}

// --- merge subcommand ---

var cacheMergeCmd = &cobra.Command{
	Use:   "merge <database>",
	Short: "Merge another cache database into this one",
	Long: `Merge imports every entry of another installation's cache database.
New positions are inserted as-is; positions present in both caches have
their move statistics averaged.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheMerge,
}

func runCacheMerge(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.MergeFrom(context.Background(), args[0], os.Stdout)
	if err != nil {
		return err
	}
	if summary.Errors > 0 {
		return fmt.Errorf("%d entries failed to merge", summary.Errors)
	}
	return nil
}

func init() {
	cacheClearCmd.Flags().String("key", "", "clear only this lookup key")
	cacheClearCmd.Flags().Bool("yes", false, "confirm clearing the entire cache")
	cacheExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheMergeCmd)

	rootCmd.AddCommand(cacheCmd)
}
