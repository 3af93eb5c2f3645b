package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultDBTimeout = 5 * time.Second

type DB struct {
	sql *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = DefaultDBTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS bgg_mappings (
  id        INTEGER PRIMARY KEY,
  query     TEXT NOT NULL,
  bgg_id    TEXT NOT NULL,
  auto      INTEGER NOT NULL CHECK (auto IN (0,1)),
  added_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mappings_query_id ON bgg_mappings(query, id DESC);
CREATE TABLE IF NOT EXISTS plays (
  id          INTEGER PRIMARY KEY,
  game_id     TEXT NOT NULL,
  play_date   TEXT NOT NULL,
  quantity    INTEGER NOT NULL DEFAULT 1,
  length      INTEGER NOT NULL DEFAULT 0,
  comments    TEXT,
  location    TEXT,
  bgg_play_id TEXT,
  num_plays   INTEGER NOT NULL DEFAULT 0,
  play_url    TEXT,
  created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plays_game ON plays(game_id, play_date);
CREATE INDEX IF NOT EXISTS idx_plays_date ON plays(play_date);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Stats summarizes the database contents.
type Stats struct {
	Queries        int `json:"queries"`
	Mappings       int `json:"mappings"`
	AutoMappings   int `json:"auto_mappings"`
	ManualMappings int `json:"manual_mappings"`
	Games          int `json:"games"`
	Plays          int `json:"plays"`
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.sql.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT query),
			COUNT(*),
			COALESCE(SUM(auto), 0),
			COUNT(DISTINCT bgg_id)
		FROM bgg_mappings
	`).Scan(&s.Queries, &s.Mappings, &s.AutoMappings, &s.Games)
	if err != nil {
		return Stats{}, err
	}
	s.ManualMappings = s.Mappings - s.AutoMappings

	if err := d.sql.QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM plays`).Scan(&s.Plays); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
