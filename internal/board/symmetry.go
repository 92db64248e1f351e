// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package board

import (
	"fmt"
	"strings"
)

// Symmetry indexes the 8 dihedral transforms of a square board.
type Symmetry int

const (
	Identity Symmetry = iota
	Rotate90
	Rotate180
	Rotate270
	FlipHorizontal
	FlipVertical
	FlipDiagonal
	FlipAntiDiagonal
)

// AllSymmetries lists every transform in deterministic probe order,
// identity first.
var AllSymmetries = []Symmetry{
	Identity, Rotate90, Rotate180, Rotate270,
	FlipHorizontal, FlipVertical, FlipDiagonal, FlipAntiDiagonal,
}

func (s Symmetry) String() string {
	switch s {
	case Identity:
		return "identity"
	case Rotate90:
		return "rotate90"
	case Rotate180:
		return "rotate180"
	case Rotate270:
		return "rotate270"
	case FlipHorizontal:
		return "flip_horizontal"
	case FlipVertical:
		return "flip_vertical"
	case FlipDiagonal:
		return "flip_diagonal"
	case FlipAntiDiagonal:
		return "flip_antidiagonal"
	}
	return fmt.Sprintf("symmetry(%d)", int(s))
}

// Inverse returns the transform that undoes s. The quarter rotations are
// mutual inverses; every other transform is its own inverse.
func (s Symmetry) Inverse() Symmetry {
	switch s {
	case Rotate90:
		return Rotate270
	case Rotate270:
		return Rotate90
	default:
		return s
	}
}

// Transform maps a point through the symmetry on a board of the given size.
// Transforms are closed over the board, so the result is always in bounds
// for an in-bounds input.
func (s Symmetry) Transform(p Point, size int) Point {
	m := size - 1
	switch s {
	case Rotate90:
		return Point{X: p.Y, Y: m - p.X}
	case Rotate180:
		return Point{X: m - p.X, Y: m - p.Y}
	case Rotate270:
		return Point{X: m - p.Y, Y: p.X}
	case FlipHorizontal:
		return Point{X: m - p.X, Y: p.Y}
	case FlipVertical:
		return Point{X: p.X, Y: m - p.Y}
	case FlipDiagonal:
		return Point{X: p.Y, Y: p.X}
	case FlipAntiDiagonal:
		return Point{X: m - p.Y, Y: m - p.X}
	default:
		return p
	}
}

// TransformGTP maps a GTP coordinate through the symmetry. Passes are
// symmetry-invariant and pass through unchanged.
func (s Symmetry) TransformGTP(coord string, size int) (string, error) {
	if strings.EqualFold(coord, Pass) {
		return Pass, nil
	}
	p, err := GTPToPoint(coord, size)
	if err != nil {
		return "", err
	}
	return PointToGTP(s.Transform(p, size)), nil
}

// TransformMoves maps every move of a sequence through the symmetry.
func (s Symmetry) TransformMoves(moves []Move, size int) ([]Move, error) {
	out := make([]Move, len(moves))
	for i, m := range moves {
		coord, err := s.TransformGTP(m.Coord, size)
		if err != nil {
			return nil, fmt.Errorf("transforming move %d (%s): %w", i, m.Coord, err)
		}
		out[i] = Move{Color: m.Color, Coord: coord}
	}
	return out, nil
}

// ValidSymmetries returns every transform under which the board's existing
// stones map onto themselves. An empty board is symmetric under all 8.
func (b *Board) ValidSymmetries() []Symmetry {
	var valid []Symmetry
	for _, s := range AllSymmetries {
		ok := true
		for p, c := range b.Stones {
			if b.Stones[s.Transform(p, b.Size)] != c {
				ok = false
				break
			}
		}
		if ok {
			valid = append(valid, s)
		}
	}
	return valid
}

// MoveKey builds the move-sequence lookup key for a board size, komi, and
// move list: "<size>:<komi>:B[Q16];W[D4]". The key is the lookup fallback
// when no spatial hash is available for a position.
func MoveKey(size int, komi float64, moves []Move) string {
	return fmt.Sprintf("%d:%s:%s", size, FormatKomi(komi), FormatMoves(moves))
}

// KeyVariant pairs a transformed move key with the symmetry that produced
// it, so results found under the variant can be mapped back through the
// inverse transform.
type KeyVariant struct {
	Symmetry Symmetry
	Key      string
}

// MoveKeyVariants returns the distinct move keys of a sequence under all 8
// symmetries, in deterministic probe order with identity first. Variants
// whose key collides with an earlier symmetry are dropped.
func MoveKeyVariants(size int, komi float64, moves []Move) ([]KeyVariant, error) {
	seen := make(map[string]bool, len(AllSymmetries))
	variants := make([]KeyVariant, 0, len(AllSymmetries))
	for _, s := range AllSymmetries {
		transformed, err := s.TransformMoves(moves, size)
		if err != nil {
			return nil, err
		}
		key := MoveKey(size, komi, transformed)
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, KeyVariant{Symmetry: s, Key: key})
	}
	return variants, nil
}
