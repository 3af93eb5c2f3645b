package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// AppendMapping records query -> bggID. Records are never updated; a later
// append for the same query supersedes earlier ones on read.
func (d *DB) AppendMapping(ctx context.Context, query, bggID string, auto bool) error {
	if query == "" || bggID == "" {
		return errors.New("mapping needs a query and a game id")
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO bgg_mappings(query, bgg_id, auto, added_at) VALUES(?,?,?,?)`,
		query, bggID, boolToInt(auto), d.now().UTC().UnixMilli())
	return err
}

// LatestMapping returns the game id of the last record appended for query. A
// miss is reported as ("", false, nil). Order comes from the rowid, which only
// grows, so wall-clock steps cannot reorder history.
func (d *DB) LatestMapping(ctx context.Context, query string) (string, bool, error) {
	var bggID string
	err := d.sql.QueryRowContext(ctx,
		`SELECT bgg_id FROM bgg_mappings WHERE query = ? ORDER BY id DESC LIMIT 1`,
		query).Scan(&bggID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return bggID, true, nil
}

// ListMappings returns the history for query, newest first. An empty query
// lists the most recent records across all queries, capped by limit.
func (d *DB) ListMappings(ctx context.Context, query string, limit int) ([]Mapping, error) {
	if limit <= 0 {
		limit = 50
	}

	q := "SELECT id, query, bgg_id, auto, added_at FROM bgg_mappings"
	args := []interface{}{}
	if query != "" {
		q += " WHERE query = ?"
		args = append(args, query)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Mapping{}
	for rows.Next() {
		var (
			m       Mapping
			auto    int
			addedAt int64
		)
		if err := rows.Scan(&m.ID, &m.Query, &m.BGGID, &auto, &addedAt); err != nil {
			return nil, err
		}
		m.Auto = auto == 1
		m.AddedAt = time.UnixMilli(addedAt).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
