package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// RecordPlay stores p and returns it with ID and CreatedAt set.
func (d *DB) RecordPlay(ctx context.Context, p Play) (Play, error) {
	if p.GameID == "" || p.PlayDate == "" {
		return Play{}, errors.New("play needs a game id and a date")
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	p.CreatedAt = d.now().UTC().Truncate(time.Millisecond)

	res, err := d.sql.ExecContext(ctx, `INSERT INTO plays(game_id, play_date, quantity, length, comments, location, bgg_play_id, num_plays, play_url, created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		p.GameID, p.PlayDate, p.Quantity, p.Length, nullIfEmpty(p.Comments), nullIfEmpty(p.Location), nullIfEmpty(p.BGGPlayID), p.NumPlays, nullIfEmpty(p.PlayURL), p.CreatedAt.UnixMilli())
	if err != nil {
		return Play{}, err
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return Play{}, err
	}
	return p, nil
}

// ListPlays returns plays matching f, most recent play date first.
func (d *DB) ListPlays(ctx context.Context, f PlayFilter) ([]Play, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if len(f.GameIDs) > 0 {
		where += " AND game_id IN (?" + strings.Repeat(",?", len(f.GameIDs)-1) + ")"
		for _, id := range f.GameIDs {
			args = append(args, id)
		}
	}
	if f.Since != "" {
		where += " AND play_date >= ?"
		args = append(args, f.Since)
	}

	q := "SELECT id, game_id, play_date, quantity, length, comments, location, bgg_play_id, num_plays, play_url, created_at FROM plays " + where + " ORDER BY play_date DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Play{}
	for rows.Next() {
		var p Play
		var comments, location, playID, playURL sql.NullString
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.GameID, &p.PlayDate, &p.Quantity, &p.Length, &comments, &location, &playID, &p.NumPlays, &playURL, &createdAt); err != nil {
			return nil, err
		}
		p.Comments = comments.String
		p.Location = location.String
		p.BGGPlayID = playID.String
		p.PlayURL = playURL.String
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
