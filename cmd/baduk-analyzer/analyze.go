// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/baduk-analyzer/internal/analyzer"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [moves...]",
	Short: "Analyze a position, computing with the engine on a miss",
	Long: `Analyze looks the position up in the opening book and the local cache,
and falls back to the local engine when neither layer has an answer of
sufficient effort. Fresh engine results are cached for next time.

Moves are given as "B Q16" "W D4" pairs in play order. Handicap stones
are placed before the move list.

Examples:
  baduk-analyzer analyze --size 19 "B Q16" "W D4"
  baduk-analyzer analyze --size 9 --komi 5.5 "B E5"
  baduk-analyzer analyze --size 19 --handicap 4`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	a, err := buildAnalyzer(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	req := requestFromFlags(cmd, args)
	result, err := a.Analyze(context.Background(), req)
	if err != nil && result != nil &&
		(errors.Is(err, analyzer.ErrEngineTimeout) || errors.Is(err, analyzer.ErrEngineCancelled)) {
		fmt.Fprintf(os.Stderr, "Warning: %v; showing partial analysis\n", err)
		err = nil
	}
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return printResult(result, jsonOutput)
}

// requestFromFlags builds an analyzer request from the shared position
// flags, used by both analyze and query.
func requestFromFlags(cmd *cobra.Command, args []string) analyzer.Request {
	size, _ := cmd.Flags().GetInt("size")
	komi, _ := cmd.Flags().GetFloat64("komi")
	handicap, _ := cmd.Flags().GetInt("handicap")
	visits, _ := cmd.Flags().GetInt("visits")
	minVisits, _ := cmd.Flags().GetInt("min-visits")
	topMoves, _ := cmd.Flags().GetInt("top")

	return analyzer.Request{
		BoardSize: size,
		Komi:      komi,
		Handicap:  handicap,
		Moves:     args,
		Visits:    visits,
		MinVisits: minVisits,
		TopMoves:  topMoves,
	}
}

func printResult(result *types.AnalysisResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("source: %s  model: %s  visits: %d", result.Source, result.ModelName, result.EngineVisits)
	if !result.Complete {
		fmt.Print("  (partial)")
	}
	fmt.Println()
	if result.MovesSequence != "" {
		fmt.Printf("position: %s\n", result.MovesSequence)
	}

	fmt.Printf("\n%-6s  %-8s  %-10s  %s\n", "Move", "Winrate", "ScoreLead", "Visits")
	for _, c := range result.TopMoves {
		fmt.Printf("%-6s  %6.1f%%  %+10.1f  %d\n", c.Move, c.Winrate*100, c.ScoreLead, c.Visits)
	}
	return nil
}

func addPositionFlags(cmd *cobra.Command) {
	cmd.Flags().Int("size", 19, "board size: 9, 13, or 19")
	cmd.Flags().Float64("komi", 0, "komi (default: 7.5, or 0.5 with handicap)")
	cmd.Flags().Int("handicap", 0, "handicap stones to place first (2-9)")
	cmd.Flags().Int("visits", 0, "engine visit budget (0 = per-size default)")
	cmd.Flags().Int("min-visits", 0, "minimum effort to accept from the cache (0 = same as --visits)")
	cmd.Flags().Int("top", 0, "number of candidate moves to show (0 = default)")
	cmd.Flags().Bool("json", false, "output the result as JSON")
}

func init() {
	addPositionFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
