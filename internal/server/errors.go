package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/bgg"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/nraw/gamescanner/pkg/search"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// classify maps an error to the status code and short type name sent to
// clients.
func classify(err error) (int, string) {
	var apiErr *bgg.APIError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, resolve.ErrEmptyQuery),
		errors.Is(err, resolve.ErrInvalidGameID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, search.ErrNoMatches):
		return http.StatusNotFound, "no_matches"
	case errors.Is(err, search.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded"
	case errors.Is(err, resolve.ErrUnrecognizedResult):
		return http.StatusBadGateway, "unrecognized_result"
	case errors.Is(err, search.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	case errors.Is(err, bgg.ErrNotAuthenticated):
		return http.StatusServiceUnavailable, "bgg_not_authenticated"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "bgg_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		utils.Log.Errorf("request failed: %v", err)
	} else {
		utils.Log.Debugf("request rejected (%d): %v", status, err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Type: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.Debugf("encoding response: %v", err)
	}
}
