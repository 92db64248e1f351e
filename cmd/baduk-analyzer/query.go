// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [moves...]",
	Short: "Look a position up in the book and cache without the engine",
	Long: `Query answers only from precomputed data: the opening book and the
local cache. The engine is never started, so a miss returns an error
instead of spending compute. Use --visits to require a minimum effort
on cache hits.`,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	a, err := buildAnalyzer(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Query(context.Background(), requestFromFlags(cmd, args))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return printResult(result, jsonOutput)
}

func init() {
	addPositionFlags(queryCmd)
	rootCmd.AddCommand(queryCmd)
}
