// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/baduk-analyzer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over a local HTTP API",
	Long: `Serve exposes POST /analyze, POST /query, GET /stats, and GET /health
on the configured address. The same lookup chain backs every request;
concurrent requests share the engine one at a time.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	a, err := buildAnalyzer(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return server.New(a, newLogger()).Run(cfg.Server.Addr)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, \":8080\")")
	rootCmd.AddCommand(serveCmd)
}
