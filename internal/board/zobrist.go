// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package board

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// zobristSeed keeps hash values stable across runs and installations, so
// cache entries written by one process remain addressable by another.
const zobristSeed = 42

const maxBoardSize = 19

// zobrist holds the random tables for position hashing: one value per
// (color, intersection), one for the side to move, and one per quantized
// komi step.
type zobrist struct {
	stones [2][maxBoardSize][maxBoardSize]uint64
	white  uint64
	komi   map[float64]uint64
}

var (
	zobristOnce   sync.Once
	zobristTables *zobrist
)

func tables() *zobrist {
	zobristOnce.Do(func() {
		rng := rand.New(rand.NewSource(zobristSeed))
		z := &zobrist{komi: make(map[float64]uint64, 401)}
		for c := 0; c < 2; c++ {
			for x := 0; x < maxBoardSize; x++ {
				for y := 0; y < maxBoardSize; y++ {
					z.stones[c][x][y] = rng.Uint64()
				}
			}
		}
		z.white = rng.Uint64()
		// Komi quantized to half-point steps from -100 to +100.
		for i := -200; i <= 200; i++ {
			z.komi[float64(i)/2] = rng.Uint64()
		}
		zobristTables = z
	})
	return zobristTables
}

func quantizeKomi(komi float64) float64 {
	return math.Round(komi*2) / 2
}

// Hash computes the Zobrist hash of the position: stones, side to move,
// and quantized komi.
func (b *Board) Hash() uint64 {
	return hashStones(b.Stones, b.NextPlayer, b.Komi)
}

func hashStones(stones map[Point]Color, next Color, komi float64) uint64 {
	z := tables()
	var h uint64
	for p, c := range stones {
		idx := 0
		if c == White {
			idx = 1
		}
		h ^= z.stones[idx][p.X][p.Y]
	}
	if next == White {
		h ^= z.white
	}
	if v, ok := z.komi[quantizeKomi(komi)]; ok {
		h ^= v
	}
	return h
}

// CanonicalKey identifies a position invariant under board symmetry.
type CanonicalKey struct {
	// Symmetry is the transform that maps this position into its
	// canonical orientation.
	Symmetry Symmetry

	// Digest is the canonical 64-bit Zobrist hash.
	Digest uint64

	// MoveKey is the move-sequence key of the untransformed position,
	// used when a consumer indexes by move list rather than hash.
	MoveKey string
}

// HashKey renders the digest as the 16-hex-digit storage key.
func (k CanonicalKey) HashKey() string {
	return fmt.Sprintf("%016x", k.Digest)
}

// Canonical computes the position's canonical key: the smallest Zobrist
// digest over all 8 symmetries, together with the transform that reaches
// it. Iteration order is fixed (identity first) so ties resolve
// deterministically.
func (b *Board) Canonical() CanonicalKey {
	best := CanonicalKey{
		Symmetry: Identity,
		Digest:   b.Hash(),
		MoveKey:  MoveKey(b.Size, b.Komi, b.AllMoves()),
	}
	for _, s := range AllSymmetries[1:] {
		transformed := make(map[Point]Color, len(b.Stones))
		for p, c := range b.Stones {
			transformed[s.Transform(p, b.Size)] = c
		}
		h := hashStones(transformed, b.NextPlayer, b.Komi)
		if h < best.Digest {
			best.Digest = h
			best.Symmetry = s
		}
	}
	return best
}
