// Package history keeps a log of completed downloads in a local SQLite
// database, for the stats command and operational digging.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  platform TEXT NOT NULL,
  source_url TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  caption TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

// Entry is one completed download.
type Entry struct {
	ID        string
	UserID    int64
	Platform  string
	SourceURL string
	SizeBytes int64
	Caption   string
	Author    string
	CreatedAt time.Time
}

// Stats aggregates the download log.
type Stats struct {
	TotalDownloads int
	TotalBytes     int64
	ByPlatform     map[string]int
}

// Store wraps the downloads database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the history database at path.
// ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// An in-memory database exists per connection; pin the pool to one
	// so the schema does not vanish between queries.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts a completed download. A missing ID is generated.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO downloads (id, user_id, platform, source_url, size_bytes, caption, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Platform, e.SourceURL, e.SizeBytes, e.Caption, e.Author, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording download: %w", err)
	}
	return nil
}

// Recent returns the latest n downloads, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	query := `SELECT id, user_id, platform, source_url, size_bytes, caption, author, created_at
		FROM downloads ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("querying recent downloads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Platform, &e.SourceURL, &e.SizeBytes, &e.Caption, &e.Author, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Snapshot aggregates totals over the whole log.
func (s *Store) Snapshot(ctx context.Context) (Stats, error) {
	stats := Stats{ByPlatform: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM downloads`)
	if err := row.Scan(&stats.TotalDownloads, &stats.TotalBytes); err != nil {
		return stats, fmt.Errorf("aggregating downloads: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT platform, COUNT(*) FROM downloads GROUP BY platform`)
	if err != nil {
		return stats, fmt.Errorf("aggregating by platform: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return stats, err
		}
		stats.ByPlatform[platform] = count
	}
	return stats, rows.Err()
}
