package wishlist

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Game is a single catalog search result. Only ID and Name are interpreted here, the rest of
// the object belongs to the catalog and is carried through untouched.
type Game struct {
	ID   int64
	Name string
	raw  json.RawMessage
}

// NewGame builds a game that has no catalog payload beyond its id and name.
func NewGame(id int64, name string) Game {
	return Game{ID: id, Name: name}
}

type gameKeys struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON keeps the full object so it can be posted back unchanged
func (g *Game) UnmarshalJSON(data []byte) error {
	var keys gameKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	g.ID = keys.ID
	g.Name = keys.Name
	g.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON returns the object exactly as the catalog sent it
func (g Game) MarshalJSON() ([]byte, error) {
	if len(g.raw) > 0 {
		return g.raw, nil
	}
	return json.Marshal(gameKeys{ID: g.ID, Name: g.Name})
}

// Decode unmarshals the catalog payload into v
func (g Game) Decode(v any) error {
	data, err := g.MarshalJSON()
	if err != nil {
		return err
	}
	if v == nil {
		return errors.New("decode into nil")
	}
	return json.Unmarshal(data, v)
}

// Entry is a game stored on the wishlist as returned by GET /api/wishlist
type Entry struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	IGDBID        int64           `json:"igdb_id"`
	IGDBInfo      json.RawMessage `json:"igdb_info"`
	AddedOn       int64           `json:"added_on"`
	PCReleaseDate int64           `json:"pc_release_date"`
}

// Upcoming is an entry releasing soon, as returned by GET /api/wishlist/upcoming
type Upcoming struct {
	Entry
	DaysLeft int `json:"days_left"`
}
