package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/bgg"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/nraw/gamescanner/pkg/storage"
)

type resolveResponse struct {
	resolve.Lookup
	Play *playResponse `json:"play,omitempty"`
}

type playResponse struct {
	GameID   string `json:"game_id"`
	PlayID   string `json:"play_id,omitempty"`
	NumPlays int    `json:"num_plays,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleResolve accepts the same fields as query parameters or a form body:
// query, bgg_id, bg_name and the play / redirect flags.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	lookup, err := s.Service.Lookup(r.Context(), resolve.LookupRequest{
		Query: r.Form.Get("query"),
		BGGID: r.Form.Get("bgg_id"),
		Name:  r.Form.Get("bg_name"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := resolveResponse{Lookup: lookup}
	if _, ok := r.Form["play"]; ok {
		// The lookup already succeeded; a failed play is reported, not fatal.
		play, err := s.logPlay(r.Context(), bgg.PlayRequest{GameID: lookup.GameID})
		if err != nil {
			utils.Log.Warnf("logging play for %s failed: %v", lookup.GameID, err)
			play.Error = err.Error()
		}
		resp.Play = &play
	}

	if _, ok := r.Form["redirect"]; ok {
		http.Redirect(w, r, lookup.URL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logPlay(ctx context.Context, req bgg.PlayRequest) (playResponse, error) {
	out := playResponse{GameID: req.GameID}
	res, err := s.BGG.LogPlay(ctx, req)
	if err != nil {
		return out, err
	}
	out.PlayID, out.NumPlays, out.URL = res.PlayID, res.NumPlays, res.URL

	_, err = s.DB.RecordPlay(ctx, storage.Play{
		GameID:    req.GameID,
		PlayDate:  res.PlayDate,
		Quantity:  req.Quantity,
		Length:    req.Length,
		Comments:  req.Comments,
		Location:  req.Location,
		BGGPlayID: res.PlayID,
		NumPlays:  res.NumPlays,
		PlayURL:   res.URL,
	})
	if err != nil {
		utils.Log.Errorf("play %s logged on BGG but not recorded locally: %v", res.PlayID, err)
	}
	return out, nil
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	mappings, err := s.DB.ListMappings(r.Context(), q.Get("query"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if mappings == nil {
		mappings = []storage.Mapping{}
	}
	writeJSON(w, http.StatusOK, mappings)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type PlayRequest struct {
	GameID   string `json:"game_id"`
	Game     string `json:"game"`
	PlayDate string `json:"playdate"`
	Quantity int    `json:"quantity"`
	Length   int    `json:"length"`
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

func (s *Server) handleLogPlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	id, err := s.gameID(r.Context(), req.GameID, req.Game)
	if err != nil {
		writeError(w, err)
		return
	}

	play, err := s.logPlay(r.Context(), bgg.PlayRequest{
		GameID:   id,
		PlayDate: req.PlayDate,
		Quantity: req.Quantity,
		Length:   req.Length,
		Comments: req.Notes,
		Location: req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, play)
}

func (s *Server) handleListPlays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	filter := storage.PlayFilter{Since: q.Get("since"), Limit: limit}
	if id := q.Get("game_id"); id != "" {
		filter.GameIDs = []string{id}
	}

	plays, err := s.DB.ListPlays(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if plays == nil {
		plays = []storage.Play{}
	}
	writeJSON(w, http.StatusOK, plays)
}

type WishlistRequest struct {
	GameID   string `json:"game_id"`
	Game     string `json:"game"`
	Priority int    `json:"priority"`
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request) {
	var req WishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	id, err := s.gameID(r.Context(), req.GameID, req.Game)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.BGG.AddWishlist(r.Context(), id, req.Priority); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"game_id": id, "url": resolve.GameURL(id)})
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	players, err := intParam(q.Get("player_count"))
	if err != nil {
		writeError(w, err)
		return
	}

	games, err := s.BGG.OwnedGames(r.Context(), q.Get("username"), players)
	if err != nil {
		writeError(w, err)
		return
	}
	if games == nil {
		games = []bgg.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// gameID picks the explicit id when given, otherwise resolves the name.
func (s *Server) gameID(ctx context.Context, id, name string) (string, error) {
	switch {
	case id != "":
		if !utils.IsBarcode(id) {
			return "", resolve.ErrInvalidGameID
		}
		return id, nil
	case name != "":
		return s.Service.Resolve(ctx, name)
	default:
		return "", fmt.Errorf("%w: game_id or game is required", errBadRequest)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", errBadRequest, v)
	}
	return n, nil
}
