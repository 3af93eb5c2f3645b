package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/nraw/gamescanner/internal/utils"
)

const (
	// BGGSite scopes the second search to game pages.
	BGGSite   = "boardgamegeek.com/boardgame"
	bggDomain = "boardgamegeek.com"
	bggGame   = "https://boardgamegeek.com/boardgame/"
)

// gameSections are the first path segments that carry a game id, as in
// /boardgame/167355/nemesis or /boardgameexpansion/250458/nemesis-aftermath.
var gameSections = map[string]bool{
	"boardgame":          true,
	"boardgameexpansion": true,
}

var ErrUnrecognizedResult = errors.New("unrecognized search result")

// UnrecognizedResultError is returned when the top link of the scoped search
// is not a game page, so no identifier can be read from it.
type UnrecognizedResultError struct {
	URL string
}

func (e *UnrecognizedResultError) Error() string {
	return fmt.Sprintf("top result is not a boardgamegeek game page: %s", e.URL)
}

func (e *UnrecognizedResultError) Is(target error) bool { return target == ErrUnrecognizedResult }

// GameURL returns the canonical page for a game id.
func GameURL(id string) string {
	return bggGame + id
}

// ExtractID reads the identifier from a game page link
// (https://boardgamegeek.com/boardgame/<id>/<slug>).
func ExtractID(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return "", &UnrecognizedResultError{URL: link}
	}

	domain, err := publicsuffix.Domain(strings.ToLower(u.Hostname()))
	if err != nil || domain != bggDomain {
		return "", &UnrecognizedResultError{URL: link}
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || !gameSections[segments[0]] || !utils.IsBarcode(segments[1]) {
		return "", &UnrecognizedResultError{URL: link}
	}
	return segments[1], nil
}

// IsGamePage reports whether link already points at a game page.
func IsGamePage(link string) bool {
	_, err := ExtractID(link)
	return err == nil
}
