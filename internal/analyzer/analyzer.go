// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyzer orchestrates the three-layer lookup chain: opening
// book, then local cache, then the live engine. Results always come back
// in the caller's board orientation; the cache is read and written in
// canonical orientation so geometrically equivalent positions share one
// entry.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/internal/book"
	"github.com/pdiddy/baduk-analyzer/internal/cache"
	"github.com/pdiddy/baduk-analyzer/internal/engine"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// ErrEngineTimeout means the engine ran past its configured deadline.
// The partial result collected up to that point is still returned and
// cached.
var ErrEngineTimeout = errors.New("engine analysis timed out")

// ErrEngineCancelled means the caller cancelled the request mid-engine.
var ErrEngineCancelled = errors.New("engine analysis cancelled")

// PositionError reports a request that cannot describe a legal position:
// unsupported board size, malformed coordinates, or occupied points.
type PositionError struct {
	Err error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("unsupported position: %v", e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

// NoResultError reports that every layer of the chain came up empty,
// with one line of detail per layer. Err, when set, carries the cause
// of the terminal layer's failure (e.g. engine.ErrUnavailable).
type NoResultError struct {
	Key    string
	Layers []string
	Err    error
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("no analysis available for %s (%s)", e.Key, strings.Join(e.Layers, "; "))
}

func (e *NoResultError) Unwrap() error { return e.Err }

// Request describes one position to analyze. Zero values fall back to
// configured defaults.
type Request struct {
	// BoardSize is 9, 13, or 19.
	BoardSize int

	// Komi; zero means the configured default (0.5 for handicap games).
	Komi float64

	// Handicap places standard handicap stones before the moves (2-9).
	Handicap int

	// Moves in "COLOR COORD" form, e.g. "B Q16".
	Moves []string

	// Visits is the engine's compute budget; zero means the
	// per-board-size default.
	Visits int

	// MinVisits is the minimum acceptable effort for a cached answer.
	// Zero falls back to Visits, so a cached result is never weaker than
	// what the engine would have been asked for.
	MinVisits int

	// TopMoves caps returned candidates; zero means the configured default.
	TopMoves int
}

// Analyzer is the fallback orchestrator. Any layer may be nil; missing
// layers are skipped.
type Analyzer struct {
	book   *book.Index
	cache  *cache.Store
	engine engine.Engine

	cfg     types.AnalysisConfig
	timeout time.Duration
	log     *slog.Logger
}

// New assembles an analyzer from its layers. timeout bounds a single
// engine run; zero disables the bound.
func New(bk *book.Index, cs *cache.Store, eng engine.Engine, cfg types.AnalysisConfig, timeout time.Duration, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{
		book:    bk,
		cache:   cs,
		engine:  eng,
		cfg:     cfg,
		timeout: timeout,
		log:     log,
	}
}

func (a *Analyzer) buildBoard(req Request) (*board.Board, error) {
	komi := req.Komi
	if komi == 0 {
		komi = a.cfg.DefaultKomi
		if req.Handicap >= 2 {
			komi = 0.5
		}
	}
	b, err := board.New(req.BoardSize, komi)
	if err != nil {
		return nil, &PositionError{Err: err}
	}
	if err := b.SetupHandicap(req.Handicap); err != nil {
		return nil, &PositionError{Err: err}
	}
	if err := b.PlayMoves(req.Moves); err != nil {
		return nil, &PositionError{Err: err}
	}
	return b, nil
}

func (a *Analyzer) effort(req Request, size int) (visits, minVisits, topMoves int) {
	visits = req.Visits
	if visits <= 0 {
		visits = a.cfg.DefaultVisits(size)
	}
	minVisits = req.MinVisits
	if minVisits <= 0 {
		minVisits = visits
	}
	topMoves = req.TopMoves
	if topMoves <= 0 {
		topMoves = a.cfg.TopMoves
	}
	return visits, minVisits, topMoves
}

// Analyze walks the chain front to back and returns the first usable
// result. A cache entry is usable when its effort meets the request's
// visit budget. Engine interruptions return the partial result together
// with ErrEngineTimeout or ErrEngineCancelled; the partial is cached as
// incomplete so a later complete run can replace it.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*types.AnalysisResult, error) {
	b, err := a.buildBoard(req)
	if err != nil {
		return nil, err
	}
	visits, minVisits, topMoves := a.effort(req, b.Size)
	canonical := b.Canonical()
	key := canonical.HashKey()

	var layers []string

	if result, ok := a.lookupBook(b, topMoves); ok {
		return result, nil
	}
	layers = append(layers, a.bookMissDetail())

	if result, detail := a.lookupCache(ctx, b, canonical, minVisits, topMoves); result != nil {
		return result, nil
	} else {
		layers = append(layers, detail)
	}

	if a.engine == nil {
		layers = append(layers, "engine: not configured")
		return nil, &NoResultError{Key: key, Layers: layers, Err: engine.ErrUnavailable}
	}

	ectx := ctx
	var cancel context.CancelFunc
	if a.timeout > 0 {
		ectx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.engine.Analyze(ectx, b, engine.Request{Visits: visits})
	var interrupted error
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		interrupted = fmt.Errorf("%w after %s", ErrEngineTimeout, a.timeout)
	case errors.Is(err, context.Canceled):
		interrupted = ErrEngineCancelled
	default:
		layers = append(layers, fmt.Sprintf("engine: %v", err))
		return nil, &NoResultError{Key: key, Layers: layers}
	}

	if result == nil || len(result.TopMoves) == 0 {
		if interrupted != nil {
			return nil, interrupted
		}
		layers = append(layers, "engine: no candidates")
		return nil, &NoResultError{Key: key, Layers: layers}
	}

	a.finalize(ctx, b, canonical, result, topMoves)
	return result, interrupted
}

// Query answers from the book and cache only; the engine is never
// started. With req.Visits > 0 a cache entry must meet that effort.
func (a *Analyzer) Query(ctx context.Context, req Request) (*types.AnalysisResult, error) {
	b, err := a.buildBoard(req)
	if err != nil {
		return nil, err
	}
	topMoves := req.TopMoves
	if topMoves <= 0 {
		topMoves = a.cfg.TopMoves
	}
	minVisits := req.MinVisits
	if minVisits <= 0 {
		minVisits = req.Visits
	}
	canonical := b.Canonical()

	var layers []string
	if result, ok := a.lookupBook(b, topMoves); ok {
		return result, nil
	}
	layers = append(layers, a.bookMissDetail())

	if result, detail := a.lookupCache(ctx, b, canonical, minVisits, topMoves); result != nil {
		return result, nil
	} else {
		layers = append(layers, detail)
	}
	layers = append(layers, "engine: skipped for query")

	return nil, &NoResultError{Key: canonical.HashKey(), Layers: layers}
}

func (a *Analyzer) lookupBook(b *board.Board, topMoves int) (*types.AnalysisResult, bool) {
	if a.book == nil {
		return nil, false
	}
	result, ok := a.book.Lookup(b)
	if !ok {
		return nil, false
	}
	capCandidates(result, topMoves)
	return result, true
}

func (a *Analyzer) bookMissDetail() string {
	if a.book == nil {
		return "book: not loaded"
	}
	return "book: miss"
}

// lookupCache probes the canonical key and maps any acceptable hit back
// into the caller's orientation. minVisits <= 0 accepts any effort.
func (a *Analyzer) lookupCache(ctx context.Context, b *board.Board, canonical board.CanonicalKey, minVisits, topMoves int) (*types.AnalysisResult, string) {
	if a.cache == nil {
		return nil, "cache: not configured"
	}
	entry, err := a.cache.Get(ctx, canonical.HashKey(), b.Komi, 0)
	if err != nil {
		a.log.Warn("cache lookup failed", "key", canonical.HashKey(), "err", err)
		return nil, fmt.Sprintf("cache: %v", err)
	}
	if entry == nil {
		return nil, "cache: miss"
	}
	if minVisits > 0 && entry.EngineVisits < minVisits {
		return nil, fmt.Sprintf("cache: best entry has %d visits, need %d", entry.EngineVisits, minVisits)
	}
	if !entry.Complete {
		return nil, "cache: only a partial entry"
	}

	// Stored candidates are in canonical orientation; the inverse of the
	// board's canonicalizing transform maps them back to the caller's.
	inv := canonical.Symmetry.Inverse()
	oriented := make([]types.MoveCandidate, 0, len(entry.TopMoves))
	for _, c := range entry.TopMoves {
		coord, err := inv.TransformGTP(c.Move, b.Size)
		if err != nil {
			a.log.Warn("dropping unmappable cached candidate", "move", c.Move, "err", err)
			continue
		}
		if b.Occupied(coord) {
			continue
		}
		c.Move = coord
		oriented = append(oriented, c)
	}
	if len(oriented) == 0 {
		return nil, "cache: entry has no usable candidates"
	}
	entry.TopMoves = oriented
	entry.MovesSequence = b.MovesSequence()
	sortByWinrate(entry.TopMoves)
	capCandidates(entry, topMoves)
	return entry, ""
}

// finalize cleans an engine result for the caller and writes its
// canonical form to the cache. Cache write failures are logged, not
// surfaced: the caller still has a usable result.
func (a *Analyzer) finalize(ctx context.Context, b *board.Board, canonical board.CanonicalKey, result *types.AnalysisResult, topMoves int) {
	kept := result.TopMoves[:0]
	for _, c := range result.TopMoves {
		if strings.EqualFold(c.Move, board.Pass) {
			kept = append(kept, c)
			continue
		}
		if b.Occupied(c.Move) {
			continue
		}
		if _, err := board.GTPToPoint(c.Move, b.Size); err != nil {
			a.log.Warn("dropping illegal engine candidate", "move", c.Move)
			continue
		}
		kept = append(kept, c)
	}
	result.TopMoves = kept
	sortByWinrate(result.TopMoves)
	capCandidates(result, topMoves)
	result.LookupKey = canonical.HashKey()
	result.MovesSequence = b.MovesSequence()

	if a.cache == nil || len(result.TopMoves) == 0 {
		return
	}
	stored := *result
	stored.TopMoves = make([]types.MoveCandidate, 0, len(result.TopMoves))
	for _, c := range result.TopMoves {
		coord, err := canonical.Symmetry.TransformGTP(c.Move, b.Size)
		if err != nil {
			continue
		}
		c.Move = coord
		stored.TopMoves = append(stored.TopMoves, c)
	}
	if moves, err := canonical.Symmetry.TransformMoves(b.AllMoves(), b.Size); err == nil {
		stored.MovesSequence = board.FormatMoves(moves)
	}
	if err := a.cache.Put(ctx, stored); err != nil {
		a.log.Warn("caching analysis result failed", "key", stored.LookupKey, "err", err)
	}
}

// GetStats combines book and cache statistics.
func (a *Analyzer) GetStats(ctx context.Context) (types.Stats, error) {
	stats := types.Stats{ByBoardSize: make(map[int]int)}
	if a.book != nil {
		stats.BookEntries = a.book.Entries()
		for size, n := range a.book.CountsByBoardSize() {
			stats.ByBoardSize[size] += n
		}
	}
	if a.cache != nil {
		cs, err := a.cache.GetStats(ctx)
		if err != nil {
			return types.Stats{}, err
		}
		stats.CacheEntries = cs.TotalEntries
		for size, n := range cs.ByBoardSize {
			stats.ByBoardSize[size] += n
		}
	}
	return stats, nil
}

// Close shuts down the engine and cache layers.
func (a *Analyzer) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}

func sortByWinrate(cs []types.MoveCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Winrate != cs[j].Winrate {
			return cs[i].Winrate > cs[j].Winrate
		}
		if cs[i].Visits != cs[j].Visits {
			return cs[i].Visits > cs[j].Visits
		}
		return cs[i].Move < cs[j].Move
	})
}

func capCandidates(r *types.AnalysisResult, topMoves int) {
	if topMoves > 0 && len(r.TopMoves) > topMoves {
		r.TopMoves = r.TopMoves[:topMoves]
	}
}
