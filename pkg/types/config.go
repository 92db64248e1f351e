// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EngineConfig holds settings for the external analysis engine subprocess.
type EngineConfig struct {
	// Enabled controls whether the live engine may be started at all.
	// When false, lookups that miss both the book and the cache fail.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Command is the path to the engine executable (e.g. "katago").
	Command string `json:"command" yaml:"command"`

	// ModelPath is the neural network weights file passed to the engine.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// ConfigPath is the engine's own configuration file.
	ConfigPath string `json:"config_path" yaml:"config_path"`

	// AnalysisTimeout bounds a single engine invocation (default 60s).
	AnalysisTimeout time.Duration `json:"analysis_timeout" yaml:"analysis_timeout"`
}

// CacheConfig holds settings for the persistent analysis cache.
type CacheConfig struct {
	// Path is the SQLite database file. Parent directories are created
	// on open.
	Path string `json:"path" yaml:"path"`
}

// BookConfig holds settings for the bundled opening book.
type BookConfig struct {
	// Path is the bundled book file (.json or .json.gz). Empty disables
	// the book layer; the cache and engine still function.
	Path string `json:"path" yaml:"path"`

	// FirstMoves maps board size to the move synthesized for an empty
	// board that has no book entry. A domain heuristic, not a structural
	// constant, so it is configurable.
	FirstMoves map[int]string `json:"first_moves" yaml:"first_moves"`
}

// AnalysisConfig holds defaults for analysis requests.
type AnalysisConfig struct {
	// DefaultKomi is used when a request does not specify komi (default
	// 7.5, or 0.5 for handicap games).
	DefaultKomi float64 `json:"default_komi" yaml:"default_komi"`

	// Visits19 is the default engine visit budget on 19x19 (default 150).
	Visits19 int `json:"visits_19" yaml:"visits_19"`

	// VisitsSmall is the default visit budget on 9x9 and 13x13 boards,
	// where search is cheap (default 500).
	VisitsSmall int `json:"visits_small" yaml:"visits_small"`

	// TopMoves is the number of candidates to keep per result (default 10).
	TopMoves int `json:"top_moves" yaml:"top_moves"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`
}

// Config groups all sections for the analyzer.
type Config struct {
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Book     BookConfig     `json:"book" yaml:"book"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// DefaultFirstMoves are the synthesized empty-board openings per board
// size: the center point on small boards, the 4-4 corner star on 19x19.
func DefaultFirstMoves() map[int]string {
	return map[int]string{
		9:  "E5",
		13: "G7",
		19: "Q16",
	}
}

// WithDefaults fills unset fields with their documented defaults.
func (c Config) WithDefaults() Config {
	if c.Engine.AnalysisTimeout <= 0 {
		c.Engine.AnalysisTimeout = 60 * time.Second
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/analysis.db"
	}
	if len(c.Book.FirstMoves) == 0 {
		c.Book.FirstMoves = DefaultFirstMoves()
	}
	if c.Analysis.DefaultKomi == 0 {
		c.Analysis.DefaultKomi = 7.5
	}
	if c.Analysis.Visits19 <= 0 {
		c.Analysis.Visits19 = 150
	}
	if c.Analysis.VisitsSmall <= 0 {
		c.Analysis.VisitsSmall = 500
	}
	if c.Analysis.TopMoves <= 0 {
		c.Analysis.TopMoves = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	return c
}

// DefaultVisits returns the visit budget for a board size.
func (c AnalysisConfig) DefaultVisits(boardSize int) int {
	if boardSize == 19 {
		return c.Visits19
	}
	return c.VisitsSmall
}
