// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package board

import (
	"testing"
)

func TestTransformInverseRoundtrip(t *testing.T) {
	for _, size := range []int{9, 13, 19} {
		for _, s := range AllSymmetries {
			inv := s.Inverse()
			for x := 0; x < size; x++ {
				for y := 0; y < size; y++ {
					p := Point{X: x, Y: y}
					got := inv.Transform(s.Transform(p, size), size)
					if got != p {
						t.Fatalf("size %d %s: inverse(transform(%v)) = %v", size, s, p, got)
					}
				}
			}
		}
	}
}

func TestTransformStaysOnBoard(t *testing.T) {
	for _, size := range []int{9, 13, 19} {
		for _, s := range AllSymmetries {
			for x := 0; x < size; x++ {
				for y := 0; y < size; y++ {
					q := s.Transform(Point{X: x, Y: y}, size)
					if q.X < 0 || q.X >= size || q.Y < 0 || q.Y >= size {
						t.Fatalf("size %d %s: (%d,%d) -> %v out of bounds", size, s, x, y, q)
					}
				}
			}
		}
	}
}

func TestInversePairs(t *testing.T) {
	if Rotate90.Inverse() != Rotate270 || Rotate270.Inverse() != Rotate90 {
		t.Error("quarter rotations are not mutual inverses")
	}
	for _, s := range []Symmetry{Identity, Rotate180, FlipHorizontal, FlipVertical, FlipDiagonal, FlipAntiDiagonal} {
		if s.Inverse() != s {
			t.Errorf("%s should be self-inverse", s)
		}
	}
}

func TestTransformGTPPass(t *testing.T) {
	for _, s := range AllSymmetries {
		got, err := s.TransformGTP("pass", 19)
		if err != nil || got != Pass {
			t.Errorf("%s: pass -> (%q, %v)", s, got, err)
		}
	}
}

func TestTransformGTPKnownValues(t *testing.T) {
	// 9x9 center is fixed by every transform.
	for _, s := range AllSymmetries {
		got, err := s.TransformGTP("E5", 9)
		if err != nil {
			t.Fatal(err)
		}
		if got != "E5" {
			t.Errorf("%s: center E5 -> %s", s, got)
		}
	}

	// A1 corner on 9x9 cycles through the four corners.
	tests := []struct {
		s    Symmetry
		want string
	}{
		{Identity, "A1"},
		{Rotate90, "A9"},
		{Rotate180, "J9"},
		{Rotate270, "J1"},
		{FlipHorizontal, "J1"},
		{FlipVertical, "A9"},
		{FlipDiagonal, "A1"},
		{FlipAntiDiagonal, "J9"},
	}
	for _, tt := range tests {
		got, err := tt.s.TransformGTP("A1", 9)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s: A1 -> %s, want %s", tt.s, got, tt.want)
		}
	}
}

func TestValidSymmetriesEmptyBoard(t *testing.T) {
	b, _ := New(19, 7.5)
	if got := b.ValidSymmetries(); len(got) != 8 {
		t.Errorf("empty board valid symmetries = %d, want 8", len(got))
	}
}

func TestValidSymmetriesWithStones(t *testing.T) {
	// A single stone on the main diagonal keeps only identity and the
	// diagonal flip.
	b, _ := New(9, 7.5)
	b.Play(Black, "C3")
	got := b.ValidSymmetries()
	want := []Symmetry{Identity, FlipDiagonal}
	if len(got) != len(want) {
		t.Fatalf("valid symmetries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("valid symmetries = %v, want %v", got, want)
		}
	}

	// A center stone keeps all 8.
	c, _ := New(9, 7.5)
	c.Play(Black, "E5")
	if got := c.ValidSymmetries(); len(got) != 8 {
		t.Errorf("center stone valid symmetries = %d, want 8", len(got))
	}

	// An off-axis stone keeps only identity.
	d, _ := New(9, 7.5)
	d.Play(Black, "C4")
	if got := d.ValidSymmetries(); len(got) != 1 || got[0] != Identity {
		t.Errorf("off-axis stone valid symmetries = %v", got)
	}
}

func TestMoveKey(t *testing.T) {
	moves := []Move{{Black, "Q16"}, {White, "D4"}, {Black, Pass}}
	got := MoveKey(19, 7.5, moves)
	want := "19:7.5:B[Q16];W[D4];B[pass]"
	if got != want {
		t.Errorf("MoveKey = %q, want %q", got, want)
	}

	if got := MoveKey(9, 7.5, nil); got != "9:7.5:" {
		t.Errorf("empty MoveKey = %q", got)
	}
}

func TestMoveKeyVariants(t *testing.T) {
	moves := []Move{{Black, "C3"}}
	variants, err := MoveKeyVariants(9, 7.5, moves)
	if err != nil {
		t.Fatal(err)
	}

	// C3 sits on the main diagonal: each of its four symmetric images
	// (C3, C7, G3, G7) is produced by two transforms, so 4 distinct
	// keys remain.
	if len(variants) != 4 {
		t.Fatalf("variants = %d, want 4", len(variants))
	}
	if variants[0].Symmetry != Identity {
		t.Errorf("first variant symmetry = %s, want identity", variants[0].Symmetry)
	}
	if variants[0].Key != "9:7.5:B[C3]" {
		t.Errorf("identity key = %q", variants[0].Key)
	}

	seen := make(map[string]bool)
	for _, v := range variants {
		if seen[v.Key] {
			t.Errorf("duplicate key %q", v.Key)
		}
		seen[v.Key] = true
	}

	// The center move is invariant under all 8: one variant.
	center, err := MoveKeyVariants(9, 7.5, []Move{{Black, "E5"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(center) != 1 {
		t.Errorf("center variants = %d, want 1", len(center))
	}
}

func TestCanonicalHashInvariantUnderSymmetry(t *testing.T) {
	base, _ := New(19, 7.5)
	base.Play(Black, "Q16")
	base.Play(White, "D4")
	want := base.Canonical().Digest

	for _, s := range AllSymmetries[1:] {
		b, _ := New(19, 7.5)
		for _, m := range base.AllMoves() {
			coord, err := s.TransformGTP(m.Coord, 19)
			if err != nil {
				t.Fatal(err)
			}
			if err := b.Play(m.Color, coord); err != nil {
				t.Fatal(err)
			}
		}
		if got := b.Canonical().Digest; got != want {
			t.Errorf("%s: canonical digest %016x != %016x", s, got, want)
		}
	}
}

func TestCanonicalDistinguishesPositions(t *testing.T) {
	a, _ := New(19, 7.5)
	a.Play(Black, "Q16")
	b, _ := New(19, 7.5)
	b.Play(Black, "Q4")
	c, _ := New(19, 7.5)
	c.Play(Black, "K10")

	// Q16 and Q4 are vertical mirrors: same canonical digest. K10 (the
	// center) is a genuinely different position.
	if a.Canonical().Digest != b.Canonical().Digest {
		t.Error("mirrored corner openings should share a canonical digest")
	}
	if a.Canonical().Digest == c.Canonical().Digest {
		t.Error("corner and center openings should differ")
	}
}

func TestCanonicalKomiMatters(t *testing.T) {
	a, _ := New(9, 7.5)
	b, _ := New(9, 5.5)
	if a.Canonical().Digest == b.Canonical().Digest {
		t.Error("different komi should yield different digests")
	}
}

func TestHashDeterministicAcrossBoards(t *testing.T) {
	build := func() *Board {
		b, _ := New(13, 7.5)
		b.PlayMoves([]string{"B D4", "W K10"})
		return b
	}
	if build().Hash() != build().Hash() {
		t.Error("identical positions hash differently")
	}
}
