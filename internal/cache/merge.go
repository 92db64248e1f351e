// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// MergeSummary holds counts from merging another cache database.
type MergeSummary struct {
	Inserted int
	Merged   int
	Errors   int
}

// MergeFrom imports every entry of another cache database (e.g. copied
// from a second installation). Entries new to this cache are inserted
// as-is. When an entry already exists at the same (key, visits, komi),
// the two are combined: winrate and score lead are averaged for moves
// present in both, and moves unique to either side are kept.
func (s *Store) MergeFrom(ctx context.Context, sourcePath string, w io.Writer) (MergeSummary, error) {
	src, err := sql.Open("sqlite3", "file:"+sourcePath+"?mode=ro")
	if err != nil {
		return MergeSummary{}, fmt.Errorf("opening source database: %w", err)
	}
	defer src.Close()

	rows, err := src.QueryContext(ctx, `SELECT `+selectColumns+` FROM analysis_cache`)
	if err != nil {
		return MergeSummary{}, fmt.Errorf("reading source database: %w", err)
	}
	defer rows.Close()

	var summary MergeSummary
	for rows.Next() {
		incoming, err := scanResult(rows)
		if err != nil {
			fmt.Fprintf(w, "skipped: unreadable source row: %v\n", err)
			summary.Errors++
			continue
		}

		existing, err := s.Get(ctx, incoming.LookupKey, incoming.Komi, incoming.EngineVisits)
		if err != nil {
			fmt.Fprintf(w, "failed %s: %v\n", incoming.LookupKey, err)
			summary.Errors++
			continue
		}

		store := *incoming
		if existing != nil {
			store.TopMoves = combineCandidates(existing.TopMoves, incoming.TopMoves)
			store.ModelName = existing.ModelName + "+merged"
			summary.Merged++
		} else {
			summary.Inserted++
		}

		if err := s.forcePut(ctx, store); err != nil {
			fmt.Fprintf(w, "failed %s: %v\n", store.LookupKey, err)
			summary.Errors++
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterating source database: %w", err)
	}

	fmt.Fprintf(w, "\ninserted: %d, merged: %d, errors: %d\n",
		summary.Inserted, summary.Merged, summary.Errors)
	return summary, nil
}

// combineCandidates averages stats for moves present in both lists and
// keeps the union, incoming order first.
func combineCandidates(existing, incoming []types.MoveCandidate) []types.MoveCandidate {
	byMove := make(map[string]types.MoveCandidate, len(existing))
	for _, c := range existing {
		byMove[c.Move] = c
	}

	seen := make(map[string]bool, len(incoming))
	out := make([]types.MoveCandidate, 0, len(existing)+len(incoming))
	for _, c := range incoming {
		if old, ok := byMove[c.Move]; ok {
			c.Winrate = (old.Winrate + c.Winrate) / 2
			c.ScoreLead = (old.ScoreLead + c.ScoreLead) / 2
		}
		seen[c.Move] = true
		out = append(out, c)
	}
	for _, c := range existing {
		if !seen[c.Move] {
			out = append(out, c)
		}
	}
	return out
}

// forcePut bypasses the merge policy: merge results are already combined.
func (s *Store) forcePut(ctx context.Context, result types.AnalysisResult) error {
	movesJSON, err := json.Marshal(result.TopMoves)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_cache
		 (lookup_key, moves_sequence, board_size, komi, top_moves,
		  engine_visits, model_name, complete, compute_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.LookupKey, result.MovesSequence, result.BoardSize, result.Komi,
		string(movesJSON), result.EngineVisits, result.ModelName,
		boolToInt(result.Complete), nullableFloat(result.ComputeSeconds),
		result.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing merged entry: %w", err)
	}
	return nil
}

func nullableFloat(f float64) any {
	if f > 0 {
		return f
	}
	return nil
}

// ExportFormat selects the cache export encoding.
type ExportFormat string

const (
	ExportYAML ExportFormat = "yaml"
	ExportJSON ExportFormat = "json"
)

// Export writes every readable cache entry to w in the chosen format,
// highest-effort entries first. Corrupt rows are skipped.
func (s *Store) Export(ctx context.Context, w io.Writer, format ExportFormat) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analysis_cache
		 ORDER BY board_size, engine_visits DESC, lookup_key`)
	if err != nil {
		return 0, fmt.Errorf("reading cache: %w", err)
	}
	defer rows.Close()

	var entries []types.AnalysisResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			s.log.Warn("skipping corrupt entry during export", "err", err)
			continue
		}
		entries = append(entries, *r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	switch format {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return 0, fmt.Errorf("encoding export: %w", err)
		}
	default:
		data, err := yaml.Marshal(entries)
		if err != nil {
			return 0, fmt.Errorf("encoding export: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return 0, fmt.Errorf("writing export: %w", err)
		}
	}
	return len(entries), nil
}
