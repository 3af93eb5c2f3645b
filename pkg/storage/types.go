package storage

import "time"

// Mapping is one appended query -> game id record. Auto is true when the id
// was inferred by search rather than supplied by a user.
type Mapping struct {
	ID      int64     `json:"id"`
	Query   string    `json:"query"`
	BGGID   string    `json:"bgg_id"`
	Auto    bool      `json:"auto"`
	AddedAt time.Time `json:"added_at"`
}

// Play is a play logged through gamescanner, kept as a local audit trail of
// what was sent to BoardGameGeek.
type Play struct {
	ID        int64     `json:"id"`
	GameID    string    `json:"game_id"`
	PlayDate  string    `json:"playdate"`
	Quantity  int       `json:"quantity"`
	Length    int       `json:"length"`
	Comments  string    `json:"comments,omitempty"`
	Location  string    `json:"location,omitempty"`
	BGGPlayID string    `json:"bgg_play_id,omitempty"`
	NumPlays  int       `json:"num_plays"`
	PlayURL   string    `json:"play_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayFilter selects plays for ListPlays. Zero fields do not filter.
type PlayFilter struct {
	GameIDs []string
	// Since keeps plays on or after this date (YYYY-MM-DD).
	Since string
	Limit int
}
