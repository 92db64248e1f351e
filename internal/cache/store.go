// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists analysis results in a local SQLite database and
// applies the merge policy that keeps the best result per position and
// effort level.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/baduk-analyzer/pkg/types"
)

// durationSlack is how much longer an existing entry's compute time must
// be before it is considered materially greater effort than an incoming
// result of the same completeness.
const durationSlack = 1.10

// Store is the mutable analysis cache. One concurrent writer plus readers
// are supported; SQLite's WAL journal provides the durability guarantee
// that a committed put survives a crash.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// NewStore opens or creates the cache database at cfg.Path, creating
// parent directories and the schema as needed.
func NewStore(cfg types.CacheConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lookup_key TEXT NOT NULL,
			moves_sequence TEXT,
			board_size INTEGER NOT NULL,
			komi REAL NOT NULL,
			top_moves TEXT NOT NULL,
			engine_visits INTEGER NOT NULL,
			model_name TEXT NOT NULL,
			complete INTEGER NOT NULL DEFAULT 1,
			compute_seconds REAL,
			created_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_lookup_key ON analysis_cache(lookup_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cache_key_visits_komi
			ON analysis_cache(lookup_key, engine_visits, komi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const selectColumns = `lookup_key, moves_sequence, board_size, komi,
	top_moves, engine_visits, model_name, complete, compute_seconds, created_at`

// Get retrieves a cached result for (key, komi). With requiredVisits > 0
// only an exact effort match is returned; otherwise the highest-effort
// entry wins. A row whose stored candidates fail to parse is treated as a
// miss for that row and left in place.
func (s *Store) Get(ctx context.Context, key string, komi float64, requiredVisits int) (*types.AnalysisResult, error) {
	var rows *sql.Rows
	var err error
	if requiredVisits > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM analysis_cache
			 WHERE lookup_key = ? AND komi = ? AND engine_visits = ?`,
			key, komi, requiredVisits)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM analysis_cache
			 WHERE lookup_key = ? AND komi = ?
			 ORDER BY engine_visits DESC`,
			key, komi)
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			s.log.Warn("skipping corrupt cache entry", "key", key, "err", err)
			continue
		}
		return result, nil
	}
	return nil, rows.Err()
}

func scanResult(rows *sql.Rows) (*types.AnalysisResult, error) {
	var (
		r            types.AnalysisResult
		movesJSON    string
		movesSeq     sql.NullString
		complete     int
		computeSecs  sql.NullFloat64
		createdAt    sql.NullString
	)
	if err := rows.Scan(&r.LookupKey, &movesSeq, &r.BoardSize, &r.Komi,
		&movesJSON, &r.EngineVisits, &r.ModelName, &complete, &computeSecs, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(movesJSON), &r.TopMoves); err != nil {
		return nil, fmt.Errorf("parsing stored candidates: %w", err)
	}
	if len(r.TopMoves) == 0 {
		return nil, fmt.Errorf("entry has no candidates")
	}
	r.MovesSequence = movesSeq.String
	r.Complete = complete != 0
	r.ComputeSeconds = computeSecs.Float64
	if createdAt.Valid {
		if ts, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			r.CreatedAt = ts
		}
	}
	r.Source = types.SourceLocalCache
	return &r, nil
}

// Put stores a result at (lookup key, engine visits, komi), applying the
// merge policy against any existing entry at the same key. First rule
// that applies wins:
//
//  1. a complete entry is never overwritten by a partial one
//  2. with equal completeness and both durations recorded, the existing
//     entry stays when its compute time exceeds the incoming one by more
//     than 10%
//  3. otherwise the incoming result replaces the existing entry
func (s *Store) Put(ctx context.Context, result types.AnalysisResult) error {
	if result.LookupKey == "" {
		return fmt.Errorf("result has no lookup key")
	}
	if len(result.TopMoves) == 0 {
		return fmt.Errorf("result has no candidates")
	}

	var existingComplete int
	var existingSecs sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT complete, compute_seconds FROM analysis_cache
		 WHERE lookup_key = ? AND engine_visits = ? AND komi = ?`,
		result.LookupKey, result.EngineVisits, result.Komi,
	).Scan(&existingComplete, &existingSecs)
	switch {
	case err == sql.ErrNoRows:
		// No existing entry; insert below.
	case err != nil:
		return fmt.Errorf("checking existing cache entry: %w", err)
	default:
		if existingComplete != 0 && !result.Complete {
			s.log.Debug("keeping complete entry over partial incoming",
				"key", result.LookupKey, "visits", result.EngineVisits)
			return nil
		}
		sameCompleteness := (existingComplete != 0) == result.Complete
		if sameCompleteness && existingSecs.Valid && existingSecs.Float64 > 0 && result.ComputeSeconds > 0 {
			if existingSecs.Float64 > result.ComputeSeconds*durationSlack {
				s.log.Debug("keeping higher-effort entry",
					"key", result.LookupKey, "visits", result.EngineVisits,
					"existing_seconds", existingSecs.Float64,
					"incoming_seconds", result.ComputeSeconds)
				return nil
			}
		}
	}

	movesJSON, err := json.Marshal(result.TopMoves)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var computeSecs any
	if result.ComputeSeconds > 0 {
		computeSecs = result.ComputeSeconds
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_cache
		 (lookup_key, moves_sequence, board_size, komi, top_moves,
		  engine_visits, model_name, complete, compute_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.LookupKey, result.MovesSequence, result.BoardSize, result.Komi,
		string(movesJSON), result.EngineVisits, result.ModelName,
		boolToInt(result.Complete), computeSecs, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Delete removes every entry for a lookup key. Returns the number of
// rows removed.
func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE lookup_key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("deleting cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every entry. Returns the number of rows removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_cache`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the total number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache entries: %w", err)
	}
	return n, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalEntries int            `json:"total_entries" yaml:"total_entries"`
	ByBoardSize  map[int]int    `json:"by_board_size" yaml:"by_board_size"`
	ByModel      map[string]int `json:"by_model" yaml:"by_model"`
	DBSizeBytes  int64          `json:"db_size_bytes" yaml:"db_size_bytes"`
	Path         string         `json:"path" yaml:"path"`
}

// GetStats gathers cache statistics.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByBoardSize: make(map[int]int),
		ByModel:     make(map[string]int),
		Path:        s.path,
	}

	var err error
	if stats.TotalEntries, err = s.Count(ctx); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT board_size, COUNT(*) FROM analysis_cache GROUP BY board_size`)
	if err != nil {
		return Stats{}, fmt.Errorf("counting by board size: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var size, n int
		if err := rows.Scan(&size, &n); err != nil {
			return Stats{}, err
		}
		stats.ByBoardSize[size] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	modelRows, err := s.db.QueryContext(ctx,
		`SELECT model_name, COUNT(*) FROM analysis_cache GROUP BY model_name`)
	if err != nil {
		return Stats{}, fmt.Errorf("counting by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var model string
		var n int
		if err := modelRows.Scan(&model, &n); err != nil {
			return Stats{}, err
		}
		stats.ByModel[model] = n
	}
	if err := modelRows.Err(); err != nil {
		return Stats{}, err
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}
	return stats, nil
}

// VisitCounts returns entry counts per visit budget for one board size
// and komi.
func (s *Store) VisitCounts(ctx context.Context, boardSize int, komi float64) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT engine_visits, COUNT(*) FROM analysis_cache
		 WHERE board_size = ? AND komi = ? GROUP BY engine_visits`,
		boardSize, komi)
	if err != nil {
		return nil, fmt.Errorf("counting visits: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var visits, n int
		if err := rows.Scan(&visits, &n); err != nil {
			return nil, err
		}
		counts[visits] = n
	}
	return counts, rows.Err()
}
