// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package book loads the bundled opening book and serves symmetry-aware,
// read-only lookups of precomputed high-effort analysis results.
package book

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// LoadError reports an unreadable or undecodable bundle. Individual
// malformed records inside a readable bundle are skipped, not fatal.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading opening book %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SyntheticModelName labels results synthesized for empty standard
// positions that the bundle lacks.
const SyntheticModelName = "builtin-first-move"

// bundle mirrors the on-disk book format produced by the offline export
// tool. The format is owned by that tool; this package only consumes it.
type bundle struct {
	Metadata struct {
		Version          int            `json:"version"`
		TotalEntries     int            `json:"total_entries"`
		CountsByBoardSize map[string]int `json:"counts_by_board_size"`
	} `json:"metadata"`
	Entries []bundleEntry `json:"entries"`
}

type bundleEntry struct {
	MoveKey       string                `json:"move_key"`
	BoardHash     string                `json:"board_hash"`
	BoardSize     int                   `json:"board_size"`
	Komi          float64               `json:"komi"`
	MovesSequence string                `json:"moves_sequence"`
	TopMoves      []types.MoveCandidate `json:"top_moves"`
	EngineVisits  int                   `json:"engine_visits"`
	ModelName     string                `json:"model_name"`
}

// Index is the read-only opening book. After a successful Load it is safe
// for unsynchronized concurrent reads; entries never change for the
// process lifetime.
type Index struct {
	log        *slog.Logger
	firstMoves map[int]string

	mu     sync.Mutex // guards Load only
	loaded bool

	byKey  map[string]types.AnalysisResult // move-sequence key index
	byHash map[string]types.AnalysisResult // canonical-hash index
	bySize map[int]int
}

// NewIndex returns an empty index. firstMoves configures the synthesized
// empty-board answer per board size; pass nil to disable synthesis.
func NewIndex(firstMoves map[int]string, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		log:        log,
		firstMoves: firstMoves,
		byKey:      make(map[string]types.AnalysisResult),
		byHash:     make(map[string]types.AnalysisResult),
		bySize:     make(map[int]int),
	}
}

// Load reads the bundle at path (.json, or gzip-compressed when the name
// ends in .gz) and builds both indexes. It is idempotent: a second call is
// a no-op. On failure the index stays empty so later layers still function.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		defer gz.Close()
		r = gz
	}

	var b bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return &LoadError{Path: path, Err: err}
	}

	// Build into fresh maps: the index is either fully populated or
	// unchanged, never partial.
	byKey := make(map[string]types.AnalysisResult, len(b.Entries))
	byHash := make(map[string]types.AnalysisResult, len(b.Entries))
	bySize := make(map[int]int)
	skipped := 0

	for i, e := range b.Entries {
		result, err := e.toResult()
		if err != nil {
			skipped++
			ix.log.Warn("skipping malformed book entry", "index", i, "err", err)
			continue
		}
		if e.MoveKey != "" {
			insertBest(byKey, e.MoveKey, result)
		}
		if e.BoardHash != "" {
			insertBest(byHash, e.BoardHash, result)
		}
		bySize[e.BoardSize]++
	}

	ix.byKey = byKey
	ix.byHash = byHash
	ix.bySize = bySize
	ix.loaded = true

	ix.log.Info("opening book loaded",
		"path", path, "entries", len(byKey), "skipped", skipped)
	return nil
}

// insertBest keeps the higher-effort entry when a key appears twice.
func insertBest(m map[string]types.AnalysisResult, key string, r types.AnalysisResult) {
	if existing, ok := m[key]; ok && existing.EngineVisits >= r.EngineVisits {
		return
	}
	m[key] = r
}

func (e bundleEntry) toResult() (types.AnalysisResult, error) {
	if !board.SupportedSize(e.BoardSize) {
		return types.AnalysisResult{}, fmt.Errorf("unsupported board size %d", e.BoardSize)
	}
	if e.MoveKey == "" && e.BoardHash == "" {
		return types.AnalysisResult{}, fmt.Errorf("entry has neither move key nor board hash")
	}
	if len(e.TopMoves) == 0 {
		return types.AnalysisResult{}, fmt.Errorf("entry has no top moves")
	}
	for _, m := range e.TopMoves {
		if m.Move == "" {
			return types.AnalysisResult{}, fmt.Errorf("candidate with empty move")
		}
		if m.Winrate < 0 || m.Winrate > 1 {
			return types.AnalysisResult{}, fmt.Errorf("candidate %s winrate %v out of range", m.Move, m.Winrate)
		}
	}
	key := e.MoveKey
	if key == "" {
		key = e.BoardHash
	}
	return types.AnalysisResult{
		LookupKey:     key,
		BoardSize:     e.BoardSize,
		Komi:          e.Komi,
		MovesSequence: e.MovesSequence,
		TopMoves:      append([]types.MoveCandidate(nil), e.TopMoves...),
		EngineVisits:  e.EngineVisits,
		ModelName:     e.ModelName,
		Source:        types.SourceOpeningBook,
		Complete:      true,
	}, nil
}

// Lookup probes the index for the board's position. It tries all 8
// symmetry variants of the move-sequence key (identity first) and the
// canonical hash, maps any hit back into the caller's orientation, and
// expands candidates across the symmetries the current stones preserve.
// When the bundle lacks an entry for an empty standard board, a
// configured single-candidate first move is synthesized instead of
// answering nothing.
func (ix *Index) Lookup(b *board.Board) (*types.AnalysisResult, bool) {
	moves := b.AllMoves()

	variants, err := board.MoveKeyVariants(b.Size, b.Komi, moves)
	if err != nil {
		return nil, false
	}
	for _, v := range variants {
		if entry, ok := ix.byKey[v.Key]; ok {
			return ix.orient(b, entry, v.Symmetry), true
		}
	}

	// Hash-indexed entries are stored in canonical orientation, so the
	// board's own canonical transform maps them back.
	canonical := b.Canonical()
	if entry, ok := ix.byHash[canonical.HashKey()]; ok {
		return ix.orient(b, entry, canonical.Symmetry), true
	}

	if len(moves) == 0 {
		if coord, ok := ix.firstMoves[b.Size]; ok {
			return &types.AnalysisResult{
				LookupKey:    board.MoveKey(b.Size, b.Komi, nil),
				BoardSize:    b.Size,
				Komi:         b.Komi,
				TopMoves:     []types.MoveCandidate{{Move: coord, Winrate: 0.5, Visits: 1}},
				EngineVisits: 1,
				ModelName:    SyntheticModelName,
				Source:       types.SourceOpeningBook,
				Complete:     true,
			}, true
		}
	}

	return nil, false
}

// orient maps a stored entry's candidates back into the caller's
// orientation (sym transformed caller coords into stored coords, so the
// inverse maps stored back to caller), drops occupied coordinates, and
// re-expands across the symmetries valid for the current position.
func (ix *Index) orient(b *board.Board, entry types.AnalysisResult, sym board.Symmetry) *types.AnalysisResult {
	inv := sym.Inverse()
	valid := b.ValidSymmetries()

	seen := make(map[string]bool)
	var candidates []types.MoveCandidate

	add := func(coord string, c types.MoveCandidate) {
		if seen[coord] || b.Occupied(coord) {
			return
		}
		seen[coord] = true
		c.Move = coord
		candidates = append(candidates, c)
	}

	for _, c := range entry.TopMoves {
		coord, err := inv.TransformGTP(c.Move, b.Size)
		if err != nil {
			ix.log.Warn("dropping unmappable book candidate", "move", c.Move, "err", err)
			continue
		}
		add(coord, c)
		for _, vs := range valid {
			if vs == board.Identity {
				continue
			}
			expanded, err := vs.TransformGTP(coord, b.Size)
			if err != nil {
				continue
			}
			add(expanded, c)
		}
	}

	sortCandidates(candidates)

	out := entry
	out.LookupKey = b.Canonical().HashKey()
	out.MovesSequence = b.MovesSequence()
	out.TopMoves = candidates
	out.Source = types.SourceOpeningBook
	return &out
}

// sortCandidates orders by descending winrate, then visits, then
// coordinate for determinism.
func sortCandidates(cs []types.MoveCandidate) {
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

// Entries returns the number of indexed positions.
func (ix *Index) Entries() int {
	if len(ix.byKey) >= len(ix.byHash) {
		return len(ix.byKey)
	}
	return len(ix.byHash)
}

// CountsByBoardSize returns per-size entry counts.
func (ix *Index) CountsByBoardSize() map[int]int {
	out := make(map[int]int, len(ix.bySize))
	for k, v := range ix.bySize {
		out[k] = v
	}
	return out
}

// FormatStats writes a short human-readable summary, one board size per
// line in ascending order.
func (ix *Index) FormatStats(w io.Writer) {
	fmt.Fprintf(w, "book entries: %d\n", ix.Entries())
	sizes := make([]int, 0, len(ix.bySize))
	for size := range ix.bySize {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	for _, size := range sizes {
		fmt.Fprintf(w, "  %2sx%-2s %d\n",
			strconv.Itoa(size), strconv.Itoa(size), ix.bySize[size])
	}
}
