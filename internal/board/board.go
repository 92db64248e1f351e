// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package board models Go positions: GTP coordinates, handicap placement,
// Zobrist hashing, and the 8-fold dihedral symmetry group used to collapse
// geometrically equivalent positions onto one canonical key.
package board

import (
	"fmt"
	"strconv"
	"strings"
)

// Columns holds the GTP column letters. "I" is skipped by convention.
const Columns = "ABCDEFGHJKLMNOPQRST"

// Pass is the GTP spelling of a pass move.
const Pass = "pass"

// Color is a stone color, "B" or "W".
type Color string

const (
	Black Color = "B"
	White Color = "W"
)

// Opponent returns the other color.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Point is a zero-based intersection: X counts columns left to right,
// Y counts rows bottom to top.
type Point struct {
	X, Y int
}

// Move is one played move: a color and a GTP coordinate or "pass".
type Move struct {
	Color Color
	Coord string
}

// IsPass reports whether the move is a pass.
func (m Move) IsPass() bool { return strings.EqualFold(m.Coord, Pass) }

// SupportedSize reports whether size is one of the supported board sizes.
func SupportedSize(size int) bool {
	return size == 9 || size == 13 || size == 19
}

// GTPToPoint converts a GTP coordinate like "Q16" to a Point.
func GTPToPoint(coord string, size int) (Point, error) {
	if len(coord) < 2 {
		return Point{}, fmt.Errorf("invalid GTP coordinate %q", coord)
	}
	col := strings.ToUpper(coord[:1])
	x := strings.Index(Columns, col)
	if x < 0 {
		return Point{}, fmt.Errorf("invalid column letter in %q", coord)
	}
	row, err := strconv.Atoi(coord[1:])
	if err != nil {
		return Point{}, fmt.Errorf("invalid row in %q", coord)
	}
	y := row - 1
	if x >= size || y < 0 || y >= size {
		return Point{}, fmt.Errorf("coordinate %q out of bounds for %dx%d", coord, size, size)
	}
	return Point{X: x, Y: y}, nil
}

// PointToGTP converts a Point back to its GTP coordinate.
func PointToGTP(p Point) string {
	return fmt.Sprintf("%c%d", Columns[p.X], p.Y+1)
}

// standard handicap placements per board size, 2-9 stones
var handicapPoints = map[int]map[int][]string{
	19: {
		2: {"D4", "Q16"},
		3: {"D4", "Q16", "D16"},
		4: {"D4", "Q16", "D16", "Q4"},
		5: {"D4", "Q16", "D16", "Q4", "K10"},
		6: {"D4", "Q16", "D16", "Q4", "D10", "Q10"},
		7: {"D4", "Q16", "D16", "Q4", "D10", "Q10", "K10"},
		8: {"D4", "Q16", "D16", "Q4", "D10", "Q10", "K4", "K16"},
		9: {"D4", "Q16", "D16", "Q4", "D10", "Q10", "K4", "K16", "K10"},
	},
	13: {
		2: {"D4", "K10"},
		3: {"D4", "K10", "D10"},
		4: {"D4", "K10", "D10", "K4"},
		5: {"D4", "K10", "D10", "K4", "G7"},
		6: {"D4", "K10", "D10", "K4", "D7", "K7"},
		7: {"D4", "K10", "D10", "K4", "D7", "K7", "G7"},
		8: {"D4", "K10", "D10", "K4", "D7", "K7", "G4", "G10"},
		9: {"D4", "K10", "D10", "K4", "D7", "K7", "G4", "G10", "G7"},
	},
	9: {
		2: {"C3", "G7"},
		3: {"C3", "G7", "C7"},
		4: {"C3", "G7", "C7", "G3"},
		5: {"C3", "G7", "C7", "G3", "E5"},
		6: {"C3", "G7", "C7", "G3", "C5", "G5"},
		7: {"C3", "G7", "C7", "G3", "C5", "G5", "E5"},
		8: {"C3", "G7", "C7", "G3", "C5", "G5", "E3", "E7"},
		9: {"C3", "G7", "C7", "G3", "C5", "G5", "E3", "E7", "E5"},
	},
}

// HandicapPoints returns the standard handicap placements for a board size.
func HandicapPoints(size, handicap int) ([]string, error) {
	if handicap < 2 {
		return nil, nil
	}
	if handicap > 9 {
		return nil, fmt.Errorf("handicap must be 2-9, got %d", handicap)
	}
	sizes, ok := handicapPoints[size]
	if !ok {
		return nil, fmt.Errorf("board size must be 9, 13, or 19, got %d", size)
	}
	return sizes[handicap], nil
}

// Board is a Go position: size, komi, placed stones, and the move list
// that produced them. A Board is built per query and not shared.
type Board struct {
	Size       int
	Komi       float64
	Stones     map[Point]Color
	Moves      []Move
	Handicap   []string
	NextPlayer Color
}

// New returns an empty board of the given size.
func New(size int, komi float64) (*Board, error) {
	if !SupportedSize(size) {
		return nil, fmt.Errorf("board size must be 9, 13, or 19, got %d", size)
	}
	return &Board{
		Size:       size,
		Komi:       komi,
		Stones:     make(map[Point]Color),
		NextPlayer: Black,
	}, nil
}

// SetupHandicap places standard handicap stones. After handicap placement
// White moves first.
func (b *Board) SetupHandicap(handicap int) error {
	if handicap < 2 {
		return nil
	}
	coords, err := HandicapPoints(b.Size, handicap)
	if err != nil {
		return err
	}
	for _, coord := range coords {
		p, err := GTPToPoint(coord, b.Size)
		if err != nil {
			return err
		}
		b.Stones[p] = Black
	}
	b.Handicap = append([]string(nil), coords...)
	b.NextPlayer = White
	return nil
}

// Play records a move. Passes are legal anywhere; stone placements must
// target an empty intersection.
func (b *Board) Play(color Color, coord string) error {
	if color != Black && color != White {
		return fmt.Errorf("color must be B or W, got %q", color)
	}
	m := Move{Color: color, Coord: coord}
	if !m.IsPass() {
		p, err := GTPToPoint(coord, b.Size)
		if err != nil {
			return err
		}
		if _, occupied := b.Stones[p]; occupied {
			return fmt.Errorf("position %s is already occupied", coord)
		}
		b.Stones[p] = color
		m.Coord = PointToGTP(p)
	} else {
		m.Coord = Pass
	}
	b.Moves = append(b.Moves, m)
	b.NextPlayer = color.Opponent()
	return nil
}

// PlayMoves plays a sequence of "COLOR COORD" strings, e.g. "B Q16".
func (b *Board) PlayMoves(moves []string) error {
	for _, mv := range moves {
		fields := strings.Fields(mv)
		if len(fields) != 2 {
			return fmt.Errorf("invalid move %q: expected \"COLOR COORD\"", mv)
		}
		if err := b.Play(Color(strings.ToUpper(fields[0])), fields[1]); err != nil {
			return err
		}
	}
	return nil
}

// Occupied reports whether the GTP coordinate holds a stone. Invalid
// coordinates and passes report false.
func (b *Board) Occupied(coord string) bool {
	if strings.EqualFold(coord, Pass) {
		return false
	}
	p, err := GTPToPoint(coord, b.Size)
	if err != nil {
		return false
	}
	_, ok := b.Stones[p]
	return ok
}

// AllMoves returns handicap placements followed by played moves, which is
// the sequence lookup keys are built from.
func (b *Board) AllMoves() []Move {
	moves := make([]Move, 0, len(b.Handicap)+len(b.Moves))
	for _, coord := range b.Handicap {
		moves = append(moves, Move{Color: Black, Coord: coord})
	}
	return append(moves, b.Moves...)
}

// FormatMoves renders a move list as "B[Q16];W[D4]".
func FormatMoves(moves []Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = fmt.Sprintf("%s[%s]", m.Color, m.Coord)
	}
	return strings.Join(parts, ";")
}

// MovesSequence renders the position's move list as "B[Q16];W[D4]".
func (b *Board) MovesSequence() string {
	return FormatMoves(b.AllMoves())
}

// FormatKomi renders komi the way move keys and GTP expect it ("7.5", "0.5", "6").
func FormatKomi(komi float64) string {
	return strconv.FormatFloat(komi, 'f', -1, 64)
}

// GTPSetupCommands returns the GTP commands that reproduce this position
// in an engine: boardsize, clear_board, komi, then every placement.
func (b *Board) GTPSetupCommands() []string {
	cmds := []string{
		fmt.Sprintf("boardsize %d", b.Size),
		"clear_board",
		fmt.Sprintf("komi %s", FormatKomi(b.Komi)),
	}
	for _, m := range b.AllMoves() {
		cmds = append(cmds, fmt.Sprintf("play %s %s", m.Color, m.Coord))
	}
	return cmds
}
