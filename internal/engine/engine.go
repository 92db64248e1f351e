// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine drives a local analysis engine over the Go Text
// Protocol. The engine is the last and most expensive layer of the
// lookup chain; everything here assumes a long-running subprocess that
// is started once and reused across analyses.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// ErrUnavailable means no engine is configured or the binary could not
// be found. Callers treat this as "skip the engine layer", not a fault.
var ErrUnavailable = errors.New("analysis engine unavailable")

// StartupError reports a failure to launch the engine subprocess.
type StartupError struct {
	Command string
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("starting engine %q: %v", e.Command, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// CommandError reports a GTP command the engine rejected.
type CommandError struct {
	Cmd string
	Msg string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("gtp command %q failed: %s", e.Cmd, e.Msg)
}

// ProcessError reports an engine process that died or stopped responding.
type ProcessError struct {
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("engine process: %v", e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Request describes one analysis run.
type Request struct {
	// Visits is the target visit budget for the best move.
	Visits int

	// TopMoves caps the number of returned candidates.
	TopMoves int
}

// Engine computes fresh analysis for a position.
//
// Analyze returns the result with Source set to the live engine and the
// lookup key left empty; the caller owns canonicalization. When the
// context ends before the visit budget is reached, implementations
// return the partial result collected so far (Complete=false) together
// with the context's error, so the caller can both persist the partial
// work and report the interruption.
type Engine interface {
	// ModelName reports the loaded model, known after the first start.
	ModelName() string

	Analyze(ctx context.Context, b *board.Board, req Request) (*types.AnalysisResult, error)

	// Close shuts the engine down. Safe to call more than once.
	Close() error
}
