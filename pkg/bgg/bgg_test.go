package bgg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	c, err := New(cfg)
	require.NoError(t, err)
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = 5 * time.Millisecond
	c.now = func() time.Time { return time.Date(2024, 5, 4, 20, 30, 0, 0, time.UTC) }
	return c
}

type fakeSite struct {
	logins   int32
	lastPlay map[string]interface{}
	lastWish map[string]interface{}
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/api/v1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.logins, 1)
		var body struct {
			Credentials struct {
				Username string `json:"username"`
				Password string `json:"password"`
			} `json:"credentials"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Credentials.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"errors":{"message":"Invalid username or password"}}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SessionID", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /geekplay.php", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SessionID"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &f.lastPlay))
		fmt.Fprint(w, `{"playid":"81234567","numplays":4,"html":"Play Logged.  <a href=\"/plays/thing/167355?userid=42\">4 plays</a>"}`)
	})
	mux.HandleFunc("POST /api/collectionitems", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SessionID"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &f.lastWish))
		fmt.Fprint(w, `{"item":{"collid":1}}`)
	})
	return mux
}

func TestLogPlay(t *testing.T) {
	site := &fakeSite{}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv, Config{Username: "nraw", Password: "hunter2"})

	res, err := c.LogPlay(context.Background(), PlayRequest{GameID: "167355", Comments: "close game", Length: 90})
	require.NoError(t, err)
	assert.Equal(t, "81234567", res.PlayID)
	assert.Equal(t, 4, res.NumPlays)
	assert.Equal(t, "2024-05-04", res.PlayDate)
	assert.Equal(t, srv.URL+"/plays/thing/167355?userid=42", res.URL)

	assert.Equal(t, "167355", site.lastPlay["objectid"])
	assert.Equal(t, "2024-05-04", site.lastPlay["playdate"])
	assert.Equal(t, "1", site.lastPlay["quantity"])
	assert.Equal(t, "save", site.lastPlay["action"])
	assert.Equal(t, "thing", site.lastPlay["objecttype"])
	assert.EqualValues(t, 90, site.lastPlay["length"])

	_, err = c.LogPlay(context.Background(), PlayRequest{GameID: "13", PlayDate: "2024-01-01", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", site.lastPlay["playdate"])
	assert.Equal(t, "2", site.lastPlay["quantity"])
	assert.EqualValues(t, 1, atomic.LoadInt32(&site.logins), "session is reused")
}

func TestLoginFailures(t *testing.T) {
	site := &fakeSite{}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	_, err := c.LogPlay(context.Background(), PlayRequest{GameID: "1"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, atomic.LoadInt32(&site.logins))

	c = newTestClient(t, srv, Config{Username: "nraw", Password: "wrong"})
	err = c.Login(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestParsePlayResponse(t *testing.T) {
	c := &Client{baseURL: "https://boardgamegeek.com"}

	_, err := c.parsePlayResponse(`{"error":"You must login to save plays"}`)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "You must login to save plays", apiErr.Message)

	_, err = c.parsePlayResponse(`<html>oops</html>`)
	assert.Error(t, err)

	res, err := c.parsePlayResponse(`{"playid":12,"numplays":1,"html":""}`)
	require.NoError(t, err)
	assert.Equal(t, "12", res.PlayID)
	assert.Empty(t, res.URL)
}

func TestAddWishlist(t *testing.T) {
	site := &fakeSite{}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv, Config{Username: "nraw", Password: "hunter2"})

	require.NoError(t, c.AddWishlist(context.Background(), "224517", 0))
	item, ok := site.lastWish["item"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "224517", item["objectid"])
	assert.EqualValues(t, 3, item["wishlistpriority"])
	assert.Equal(t, map[string]interface{}{"wishlist": true}, item["status"])

	assert.Error(t, c.AddWishlist(context.Background(), "224517", 9))
	assert.Error(t, c.AddWishlist(context.Background(), "", 1))
}

const collectionBody = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<items totalitems="3" termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item objecttype="thing" objectid="13" subtype="boardgame" collid="1">
		<name sortindex="1">CATAN</name>
	</item>
	<item objecttype="thing" objectid="167355" subtype="boardgame" collid="2">
		<name sortindex="1">Nemesis</name>
	</item>
	<item objecttype="thing" objectid="999" subtype="boardgame" collid="3">
		<name sortindex="1">Broken</name>
	</item>
</items>`

func thingBody(id, name string, min, max int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<items termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item type="boardgame" id="%s">
		<name type="alternate" sortindex="1" value="Alt %s" />
		<name type="primary" sortindex="1" value="%s" />
		<minplayers value="%d" />
		<maxplayers value="%d" />
	</item>
</items>`, id, name, name, min, max)
}

func xmlAPI(t *testing.T, queued *int32, thingCalls *int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /xmlapi2/collection", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k3y", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("own"))
		if r.URL.Query().Get("username") != "nraw" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if atomic.AddInt32(queued, -1) >= 0 {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `<message>Your request for this collection has been accepted and will be processed.</message>`)
			return
		}
		fmt.Fprint(w, collectionBody)
	})
	mux.HandleFunc("GET /xmlapi2/thing", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(thingCalls, 1)
		switch r.URL.Query().Get("id") {
		case "13":
			fmt.Fprint(w, thingBody("13", "CATAN", 3, 4))
		case "167355":
			fmt.Fprint(w, thingBody("167355", "Nemesis", 1, 5))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	return mux
}

func TestCollectionRetriesQueued(t *testing.T) {
	queued, things := int32(2), int32(0)
	srv := httptest.NewServer(xmlAPI(t, &queued, &things))
	defer srv.Close()
	c := newTestClient(t, srv, Config{APIKey: "k3y"})

	games, err := c.Collection(context.Background(), "nraw")
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, Game{BGGID: "13", Name: "CATAN"}, games[0])

	_, err = c.Collection(context.Background(), "nobody")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestThingCaches(t *testing.T) {
	queued, things := int32(0), int32(0)
	srv := httptest.NewServer(xmlAPI(t, &queued, &things))
	defer srv.Close()
	c := newTestClient(t, srv, Config{APIKey: "k3y"})

	g, err := c.Thing(context.Background(), "167355")
	require.NoError(t, err)
	assert.Equal(t, Game{BGGID: "167355", Name: "Nemesis", MinPlayers: 1, MaxPlayers: 5}, g)

	_, err = c.Thing(context.Background(), "167355")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&things))
}

func TestOwnedGamesFiltersByPlayerCount(t *testing.T) {
	queued, things := int32(0), int32(0)
	srv := httptest.NewServer(xmlAPI(t, &queued, &things))
	defer srv.Close()
	c := newTestClient(t, srv, Config{APIKey: "k3y", Username: "nraw", Concurrency: 2})

	all, err := c.OwnedGames(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	solo, err := c.OwnedGames(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, solo, 1)
	assert.Equal(t, "Nemesis", solo[0].Name)

	four, err := c.OwnedGames(context.Background(), "", 4)
	require.NoError(t, err)
	require.Len(t, four, 2)
	assert.Equal(t, "13", four[0].BGGID)
	assert.Equal(t, "167355", four[1].BGGID)

	none, err := c.OwnedGames(context.Background(), "", 6)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFilterByPlayerCountCancelled(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FilterByPlayerCount(ctx, []Game{{BGGID: "1"}}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

// sessionSite issues a fresh session cookie on every login and accepts only
// the latest one, so tests can expire it.
type sessionSite struct {
	mu      sync.Mutex
	logins  int
	current string
	posts   int
	status  []int // forced statuses for successive writes
}

func (s *sessionSite) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
}

func (s *sessionSite) counts() (logins, posts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins, s.posts
}

func (s *sessionSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/api/v1", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.logins++
		s.current = fmt.Sprintf("session-%d", s.logins)
		http.SetCookie(w, &http.Cookie{Name: "SessionID", Value: s.current, Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	write := func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.posts++
		if len(s.status) > 0 {
			code := s.status[0]
			s.status = s.status[1:]
			w.WriteHeader(code)
			return
		}
		if c, err := r.Cookie("SessionID"); err != nil || c.Value != s.current {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"playid":"%d","numplays":%d,"html":""}`, s.posts, s.posts)
	}
	mux.HandleFunc("POST /geekplay.php", write)
	mux.HandleFunc("POST /api/collectionitems", write)
	return mux
}

func logins(s *sessionSite) int {
	n, _ := s.counts()
	return n
}

func posts(s *sessionSite) int {
	_, n := s.counts()
	return n
}

func TestWritesAreSentOnce(t *testing.T) {
	site := &sessionSite{status: []int{http.StatusBadGateway, http.StatusServiceUnavailable}}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()
	c := newTestClient(t, srv, Config{Username: "nraw", Password: "hunter2"})

	_, err := c.LogPlay(context.Background(), PlayRequest{GameID: "167355"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, 1, posts(site), "a failed play must not be resubmitted")

	err = c.AddWishlist(context.Background(), "224517", 0)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, 2, posts(site))
}

func TestExpiredSessionLogsInAgain(t *testing.T) {
	site := &sessionSite{}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()
	c := newTestClient(t, srv, Config{Username: "nraw", Password: "hunter2"})
	ctx := context.Background()

	_, err := c.LogPlay(ctx, PlayRequest{GameID: "167355"})
	require.NoError(t, err)
	assert.Equal(t, 1, logins(site))

	site.expire()
	res, err := c.LogPlay(ctx, PlayRequest{GameID: "167355"})
	require.NoError(t, err)
	assert.Equal(t, 2, logins(site))
	assert.Equal(t, "3", res.PlayID, "rejected post plus the resent one")

	site.expire()
	require.NoError(t, c.AddWishlist(ctx, "224517", 0))
	assert.Equal(t, 3, logins(site))

	_, err = c.LogPlay(ctx, PlayRequest{GameID: "13"})
	require.NoError(t, err)
	assert.Equal(t, 3, logins(site), "a live session is reused")
}

func TestRejectedAfterReloginIsNotAuthenticated(t *testing.T) {
	site := &sessionSite{status: []int{http.StatusUnauthorized, http.StatusUnauthorized}}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()
	c := newTestClient(t, srv, Config{Username: "nraw", Password: "hunter2"})

	_, err := c.LogPlay(context.Background(), PlayRequest{GameID: "167355"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 2, logins(site))
	assert.Equal(t, 2, posts(site))

	// The next call starts from a fresh login instead of the rejected session.
	_, err = c.LogPlay(context.Background(), PlayRequest{GameID: "167355"})
	require.NoError(t, err)
	assert.Equal(t, 3, logins(site))
}

func TestParsePlayResponseTruncatesOnRuneBoundary(t *testing.T) {
	c := &Client{baseURL: "https://boardgamegeek.com"}

	_, err := c.parsePlayResponse(strings.Repeat("ü", 100))
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}
