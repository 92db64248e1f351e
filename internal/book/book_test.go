// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package book

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/baduk-analyzer/internal/board"
	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

func writeBundle(t *testing.T, name string, b bundle) string {
	t.Helper()
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if filepath.Ext(name) == ".gz" {
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := gz.Close(); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
		return path
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleEntry(moveKey string, visits int, moves ...types.MoveCandidate) bundleEntry {
	return bundleEntry{
		MoveKey:      moveKey,
		BoardSize:    9,
		Komi:         7.5,
		TopMoves:     moves,
		EngineVisits: visits,
		ModelName:    "kata1-test",
	}
}

func loadedIndex(t *testing.T, b bundle) *Index {
	t.Helper()
	ix := NewIndex(types.DefaultFirstMoves(), nil)
	if err := ix.Load(writeBundle(t, "book.json", b)); err != nil {
		t.Fatal(err)
	}
	return ix
}

func board9(t *testing.T, moves ...string) *board.Board {
	t.Helper()
	b, err := board.New(9, 7.5)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.PlayMoves(moves); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestLoadAndDirectLookup(t *testing.T) {
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.52, ScoreLead: 0.3, Visits: 120}),
	}})

	if ix.Entries() != 1 {
		t.Fatalf("entries = %d, want 1", ix.Entries())
	}

	result, ok := ix.Lookup(board9(t, "B E5"))
	if !ok {
		t.Fatal("expected a hit")
	}
	if result.Source != types.SourceOpeningBook {
		t.Errorf("source = %s", result.Source)
	}
	if result.EngineVisits != 500 {
		t.Errorf("engine visits = %d", result.EngineVisits)
	}
	if len(result.TopMoves) == 0 || result.TopMoves[0].Winrate != 0.52 {
		t.Errorf("top moves = %+v", result.TopMoves)
	}
}

func TestLookupExpandsValidSymmetries(t *testing.T) {
	// A lone center stone preserves all 8 symmetries, so the single
	// stored candidate C3 expands to every corner 3-3 point.
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.6, Visits: 80}),
	}})

	result, ok := ix.Lookup(board9(t, "B E5"))
	if !ok {
		t.Fatal("expected a hit")
	}
	var got []string
	for _, c := range result.TopMoves {
		got = append(got, c.Move)
		if c.Winrate != 0.6 {
			t.Errorf("expanded candidate %s winrate = %v", c.Move, c.Winrate)
		}
	}
	want := []string{"C3", "C7", "G3", "G7"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
	}
}

func TestLookupViaSymmetryVariant(t *testing.T) {
	// Stored for B G7; queried with the 180-degree rotated B C3. The hit
	// must come back with candidates mapped into the caller's frame.
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[G7]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.55, Visits: 90},
			types.MoveCandidate{Move: "E5", Winrate: 0.50, Visits: 60}),
	}})

	b := board9(t, "B C3")
	result, ok := ix.Lookup(b)
	if !ok {
		t.Fatal("expected a symmetry-variant hit")
	}

	// C3 in the stored frame maps to G7 in the caller's; E5 is fixed.
	// C3 itself is occupied and must not resurface. The caller's stone
	// preserves the diagonal flip, which fixes both candidates.
	coords := make(map[string]bool)
	for _, c := range result.TopMoves {
		coords[c.Move] = true
		if b.Occupied(c.Move) {
			t.Errorf("candidate %s is occupied", c.Move)
		}
	}
	if !coords["G7"] || !coords["E5"] {
		t.Errorf("candidates = %+v, want G7 and E5", result.TopMoves)
	}
	if result.TopMoves[0].Move != "G7" {
		t.Errorf("best move = %s, want G7 (highest winrate)", result.TopMoves[0].Move)
	}
}

func TestLookupMiss(t *testing.T) {
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.6, Visits: 80}),
	}})

	if _, ok := ix.Lookup(board9(t, "B E5", "W C3", "B G7")); ok {
		t.Error("unexpected hit for an unknown position")
	}
}

func TestSyntheticFirstMove(t *testing.T) {
	ix := NewIndex(types.DefaultFirstMoves(), nil)
	if err := ix.Load(writeBundle(t, "empty.json", bundle{})); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		size int
		want string
	}{
		{9, "E5"},
		{13, "G7"},
		{19, "Q16"},
	}
	for _, tt := range tests {
		b, err := board.New(tt.size, 7.5)
		if err != nil {
			t.Fatal(err)
		}
		result, ok := ix.Lookup(b)
		if !ok {
			t.Fatalf("size %d: no synthetic result", tt.size)
		}
		if len(result.TopMoves) != 1 || result.TopMoves[0].Move != tt.want {
			t.Errorf("size %d: synthesized %+v, want %s", tt.size, result.TopMoves, tt.want)
		}
		if result.ModelName != SyntheticModelName {
			t.Errorf("size %d: model = %s", tt.size, result.ModelName)
		}
	}

	// No synthesis once a move has been played.
	if _, ok := ix.Lookup(board9(t, "B C4")); ok {
		t.Error("synthetic result for a non-empty board")
	}

	// No synthesis when disabled.
	bare := NewIndex(nil, nil)
	if err := bare.Load(writeBundle(t, "empty2.json", bundle{})); err != nil {
		t.Fatal(err)
	}
	b, _ := board.New(9, 7.5)
	if _, ok := bare.Lookup(b); ok {
		t.Error("synthetic result with synthesis disabled")
	}
}

func TestDuplicateKeyKeepsHighestEffort(t *testing.T) {
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 100,
			types.MoveCandidate{Move: "C3", Winrate: 0.5, Visits: 40}),
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "G3", Winrate: 0.51, Visits: 200}),
		sampleEntry("9:7.5:B[E5]", 250,
			types.MoveCandidate{Move: "C7", Winrate: 0.49, Visits: 100}),
	}})

	result, ok := ix.Lookup(board9(t, "B E5"))
	if !ok {
		t.Fatal("expected a hit")
	}
	if result.EngineVisits != 500 {
		t.Errorf("engine visits = %d, want the highest-effort duplicate (500)", result.EngineVisits)
	}
}

func TestMalformedEntriesSkipped(t *testing.T) {
	ix := loadedIndex(t, bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.52, Visits: 100}),
		// winrate out of range
		sampleEntry("9:7.5:B[C4]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 2.0, Visits: 100}),
		// no candidates
		sampleEntry("9:7.5:B[D4]", 500),
		// no key at all
		{BoardSize: 9, Komi: 7.5, EngineVisits: 500,
			TopMoves: []types.MoveCandidate{{Move: "C3", Winrate: 0.5, Visits: 10}}},
		// unsupported board size
		{MoveKey: "11:7.5:", BoardSize: 11, Komi: 7.5, EngineVisits: 500,
			TopMoves: []types.MoveCandidate{{Move: "C3", Winrate: 0.5, Visits: 10}}},
	}})

	if ix.Entries() != 1 {
		t.Errorf("entries = %d, want 1 (malformed records skipped)", ix.Entries())
	}
}

func TestLoadGzip(t *testing.T) {
	ix := NewIndex(nil, nil)
	path := writeBundle(t, "book.json.gz", bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.52, Visits: 100}),
	}})
	if err := ix.Load(path); err != nil {
		t.Fatal(err)
	}
	if ix.Entries() != 1 {
		t.Errorf("entries = %d, want 1", ix.Entries())
	}
}

func TestLoadFailureLeavesIndexEmpty(t *testing.T) {
	ix := NewIndex(nil, nil)

	err := ix.Load(filepath.Join(t.TempDir(), "missing.json"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if ix.Entries() != 0 {
		t.Errorf("entries = %d after failed load", ix.Entries())
	}

	// Corrupt JSON also fails cleanly.
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.Load(bad); err == nil {
		t.Fatal("corrupt bundle loaded without error")
	}
	if ix.Entries() != 0 {
		t.Errorf("entries = %d after corrupt load", ix.Entries())
	}
}

func TestLoadIdempotent(t *testing.T) {
	one := writeBundle(t, "one.json", bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[E5]", 500,
			types.MoveCandidate{Move: "C3", Winrate: 0.52, Visits: 100}),
	}})
	two := writeBundle(t, "two.json", bundle{Entries: []bundleEntry{
		sampleEntry("9:7.5:B[C4]", 500,
			types.MoveCandidate{Move: "E5", Winrate: 0.5, Visits: 100}),
		sampleEntry("9:7.5:B[D4]", 500,
			types.MoveCandidate{Move: "E5", Winrate: 0.5, Visits: 100}),
	}})

	ix := NewIndex(nil, nil)
	if err := ix.Load(one); err != nil {
		t.Fatal(err)
	}
	if err := ix.Load(two); err != nil {
		t.Fatal(err)
	}
	if ix.Entries() != 1 {
		t.Errorf("entries = %d, want 1 (second load must be a no-op)", ix.Entries())
	}
}
