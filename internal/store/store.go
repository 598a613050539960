// Package store provides the durable follow cache backed by embedded SQLite.
//
// The cache is a single table keyed by (handle, platform). It survives
// across runs so already-fetched follow lists are not re-fetched from the
// source platforms, and so a follow confirmed on the fediverse side stays
// confirmed. Rows only leave the cache through an explicit per-platform
// refresh.
//
// Access is single-process and single-writer; each statement relies on
// SQLite's own per-call transactionality, so a crash mid-run leaves
// previously committed rows intact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calebmh/fedisync/internal/follow"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding the follow cache.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the follow cache at the given path.
//
// The database is opened in embedded mode with WAL enabled. The caller MUST
// call Close() when done.
//
// Example:
//
//	st, err := store.Open("following_cache.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	// One process, one writer; a tiny pool is plenty.
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)

	st := &Store{
		conn: conn,
		path: path,
	}

	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return st, nil
}

// Path returns the filesystem path of the cache database.
func (s *Store) Path() string {
	return s.path
}

// Close closes the cache, checkpointing the WAL first so all rows land in
// the main database file.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the follow cache schema if it doesn't exist.
// Idempotent; safe to call on every process start.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS follows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL,
		platform TEXT NOT NULL,
		followed BOOLEAN NOT NULL,
		UNIQUE(handle, platform)
	);

	CREATE INDEX IF NOT EXISTS idx_follows_platform ON follows(platform);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// SaveFollows inserts records into the cache with followed=false.
//
// Existing (handle, platform) rows are left untouched, so a row already
// marked followed is never downgraded and duplicate fetches are ignored
// rather than merged. All inserts happen in one transaction.
func (s *Store) SaveFollows(ctx context.Context, records []follow.Record) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("invalid follow record: %w", err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO follows (handle, platform, followed)
	VALUES (?, ?, 0)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Handle, string(rec.Platform)); err != nil {
			return fmt.Errorf("failed to insert follow %s/%s: %w", rec.Platform, rec.Handle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit follows: %w", err)
	}

	return nil
}

// LoadByPlatform returns all cached records for one platform, or an empty
// slice if none are cached. Order is stable (insertion order).
func (s *Store) LoadByPlatform(ctx context.Context, p follow.Platform) ([]follow.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT handle, platform, followed FROM follows WHERE platform = ? ORDER BY id`,
		string(p))
	if err != nil {
		return nil, fmt.Errorf("failed to load follows for %s: %w", p, err)
	}
	defer rows.Close()

	records := []follow.Record{}
	for rows.Next() {
		var rec follow.Record
		var platform string
		if err := rows.Scan(&rec.Handle, &platform, &rec.Followed); err != nil {
			return nil, fmt.Errorf("failed to scan follow row: %w", err)
		}
		rec.Platform = follow.Platform(platform)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read follow rows: %w", err)
	}

	return records, nil
}

// SetFollowed stores the record's followed flag for the matching
// (handle, platform) row.
//
// A missing row is a silent no-op; callers must not rely on this call for
// correctness signaling.
func (s *Store) SetFollowed(ctx context.Context, rec follow.Record) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE follows SET followed = ? WHERE handle = ? AND platform = ?`,
		rec.Followed, rec.Handle, string(rec.Platform))
	if err != nil {
		return fmt.Errorf("failed to update followed status for %s/%s: %w", rec.Platform, rec.Handle, err)
	}
	return nil
}

// ClearPlatform deletes all cached rows for one platform, forcing a full
// re-fetch on the next run. Rows for other platforms are untouched.
func (s *Store) ClearPlatform(ctx context.Context, p follow.Platform) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE platform = ?`, string(p))
	if err != nil {
		return fmt.Errorf("failed to clear follows for %s: %w", p, err)
	}
	return nil
}

// PlatformCount summarizes the cache contents for one platform.
type PlatformCount struct {
	Platform follow.Platform
	Total    int
	Followed int
}

// Counts returns per-platform totals for the status command, ordered by
// platform name.
func (s *Store) Counts(ctx context.Context) ([]PlatformCount, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT platform, COUNT(*), SUM(followed)
	FROM follows
	GROUP BY platform
	ORDER BY platform
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count follows: %w", err)
	}
	defer rows.Close()

	counts := []PlatformCount{}
	for rows.Next() {
		var pc PlatformCount
		var platform string
		if err := rows.Scan(&platform, &pc.Total, &pc.Followed); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		pc.Platform = follow.Platform(platform)
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read count rows: %w", err)
	}

	return counts, nil
}
