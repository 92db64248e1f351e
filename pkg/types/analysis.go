// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the baduk-analyzer
// lookup chain: move candidates, analysis results, and the configuration
// sections consumed by the CLI and server.
package types

import "time"

// Source identifies which layer of the fallback chain produced a result.
type Source string

const (
	SourceOpeningBook Source = "opening_book"
	SourceLocalCache  Source = "local_cache"
	SourceLiveEngine  Source = "live_engine"
)

// MoveCandidate is a candidate move with its analysis statistics.
type MoveCandidate struct {
	// Move is a GTP coordinate (e.g. "Q16", "D4") or "pass".
	Move string `json:"move" yaml:"move"`

	// Winrate is the win probability for the player to move, 0.0-1.0.
	Winrate float64 `json:"winrate" yaml:"winrate"`

	// ScoreLead is the expected point lead (positive = ahead).
	ScoreLead float64 `json:"score_lead" yaml:"score_lead"`

	// Visits is the number of engine visits spent on this move.
	Visits int `json:"visits" yaml:"visits"`
}

// AnalysisResult is the complete analysis of a board position.
//
// TopMoves is ordered by descending winrate and never contains a
// coordinate that is already occupied on the analyzed position.
type AnalysisResult struct {
	// LookupKey is the canonical position identifier the result is stored
	// under: the canonical Zobrist hash, or a move-sequence key when no
	// spatial hash is available.
	LookupKey string `json:"lookup_key" yaml:"lookup_key"`

	// BoardSize is 9, 13, or 19.
	BoardSize int `json:"board_size" yaml:"board_size"`

	// Komi is the komi the position was analyzed with.
	Komi float64 `json:"komi" yaml:"komi"`

	// MovesSequence is the move list in "B[Q16];W[D4]" form, for reference.
	MovesSequence string `json:"moves_sequence" yaml:"moves_sequence"`

	// TopMoves holds the candidate moves, best first.
	TopMoves []MoveCandidate `json:"top_moves" yaml:"top_moves"`

	// EngineVisits is the total visit budget the result was computed with.
	EngineVisits int `json:"engine_visits" yaml:"engine_visits"`

	// ModelName labels the engine or network that produced the result.
	ModelName string `json:"model_name" yaml:"model_name"`

	// Source records which layer answered: opening book, local cache, or
	// the live engine.
	Source Source `json:"source" yaml:"source"`

	// Complete is false when the engine was interrupted before reaching
	// its visit budget.
	Complete bool `json:"complete" yaml:"complete"`

	// ComputeSeconds is the wall-clock duration of the engine run, when
	// known. Zero means unrecorded.
	ComputeSeconds float64 `json:"compute_seconds,omitempty" yaml:"compute_seconds,omitempty"`

	// CreatedAt is when the result was computed or stored.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// BestMove returns the top candidate, or the zero value when there are none.
func (r *AnalysisResult) BestMove() MoveCandidate {
	if len(r.TopMoves) == 0 {
		return MoveCandidate{}
	}
	return r.TopMoves[0]
}

// Stats summarizes the loaded opening book and the local cache.
type Stats struct {
	// BookEntries is the number of positions in the opening book index.
	BookEntries int `json:"book_entries" yaml:"book_entries"`

	// CacheEntries is the number of rows in the local cache.
	CacheEntries int `json:"cache_entries" yaml:"cache_entries"`

	// ByBoardSize maps board size to combined book+cache entry counts.
	ByBoardSize map[int]int `json:"by_board_size" yaml:"by_board_size"`
}
