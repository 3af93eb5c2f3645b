package bgg

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"sync"
)

// Game is a collection entry. MinPlayers and MaxPlayers are zero until the
// game's details have been fetched.
type Game struct {
	BGGID      string `json:"bgg_id"`
	Name       string `json:"name"`
	MinPlayers int    `json:"min_players,omitempty"`
	MaxPlayers int    `json:"max_players,omitempty"`
}

type collectionXML struct {
	Items []struct {
		ObjectID string `xml:"objectid,attr"`
		Name     string `xml:"name"`
	} `xml:"item"`
}

type valueAttr struct {
	Value int `xml:"value,attr"`
}

type thingXML struct {
	Items []struct {
		ID    string `xml:"id,attr"`
		Names []struct {
			Type  string `xml:"type,attr"`
			Value string `xml:"value,attr"`
		} `xml:"name"`
		MinPlayers *valueAttr `xml:"minplayers"`
		MaxPlayers *valueAttr `xml:"maxplayers"`
	} `xml:"item"`
}

// Collection lists the games a user owns.
func (c *Client) Collection(ctx context.Context, username string) ([]Game, error) {
	if username == "" {
		username = c.username
	}
	if username == "" {
		return nil, fmt.Errorf("bgg: missing username")
	}

	res, err := c.getXML(ctx, "/xmlapi2/collection?username="+url.QueryEscape(username)+"&own=1")
	if err != nil {
		return nil, fmt.Errorf("bgg collection for %s: %w", username, err)
	}

	var doc collectionXML
	if err := xml.Unmarshal([]byte(res.BodyString), &doc); err != nil {
		return nil, &APIError{StatusCode: res.StatusCode, Message: "malformed collection: " + err.Error()}
	}

	games := make([]Game, 0, len(doc.Items))
	for _, item := range doc.Items {
		games = append(games, Game{BGGID: item.ObjectID, Name: item.Name})
	}
	c.log.Debugf("[bgg] %s owns %d games", username, len(games))
	return games, nil
}

// Thing fetches a game's name and supported player counts. Results are
// cached for the lifetime of the client.
func (c *Client) Thing(ctx context.Context, id string) (Game, error) {
	if g, ok := c.details.Get(id); ok {
		return g, nil
	}

	res, err := c.getXML(ctx, "/xmlapi2/thing?id="+url.QueryEscape(id))
	if err != nil {
		return Game{}, fmt.Errorf("bgg thing %s: %w", id, err)
	}

	var doc thingXML
	if err := xml.Unmarshal([]byte(res.BodyString), &doc); err != nil {
		return Game{}, &APIError{StatusCode: res.StatusCode, Message: "malformed thing: " + err.Error()}
	}
	if len(doc.Items) == 0 {
		return Game{}, &APIError{StatusCode: res.StatusCode, Message: "no such thing: " + id}
	}

	item := doc.Items[0]
	g := Game{BGGID: id}
	for _, n := range item.Names {
		if n.Type == "primary" || g.Name == "" {
			g.Name = n.Value
		}
	}
	if item.MinPlayers != nil {
		g.MinPlayers = item.MinPlayers.Value
	}
	if item.MaxPlayers != nil {
		g.MaxPlayers = item.MaxPlayers.Value
	}

	c.details.Add(id, g)
	return g, nil
}

// FilterByPlayerCount keeps the games that support the given number of
// players. Details are fetched with at most the client's concurrency in
// flight; games whose details cannot be fetched are dropped. A non-positive
// player count returns games unchanged.
func (c *Client) FilterByPlayerCount(ctx context.Context, games []Game, players int) ([]Game, error) {
	if players <= 0 {
		return games, nil
	}

	detailed := make([]Game, len(games))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup

	for i, g := range games {
		wg.Add(1)
		go func(i int, g Game) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			d, err := c.Thing(ctx, g.BGGID)
			if err != nil {
				c.log.Errorf("[bgg] details for %s failed: %v", g.BGGID, err)
				return
			}
			if g.Name != "" {
				d.Name = g.Name
			}
			detailed[i] = d
		}(i, g)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Game
	for _, g := range detailed {
		if g.MinPlayers == 0 || g.MaxPlayers == 0 {
			continue
		}
		if g.MinPlayers <= players && players <= g.MaxPlayers {
			out = append(out, g)
		}
	}
	c.log.Debugf("[bgg] %d of %d games support %d players", len(out), len(games), players)
	return out, nil
}

// OwnedGames lists a user's collection, narrowed to a player count when
// players is positive.
func (c *Client) OwnedGames(ctx context.Context, username string, players int) ([]Game, error) {
	games, err := c.Collection(ctx, username)
	if err != nil {
		return nil, err
	}
	return c.FilterByPlayerCount(ctx, games, players)
}
