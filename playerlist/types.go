// Package playerlist aggregates server status, cached profile metadata and
// curated nicknames into the snapshot served to viewers.
package playerlist

import "encoding/json"

// Player is one connected player in the aggregate snapshot.
type Player struct {
	Username string `json:"username"`
	// Nickname is the curated nickname, null when none is configured.
	Nickname *string `json:"nickname"`
	// UUID and HeadImageURL are empty when the profile lookup failed.
	UUID         string `json:"uuid,omitempty"`
	HeadImageURL string `json:"headImageUrl,omitempty"`
}

// Status is the aggregate snapshot for the watched server.
type Status struct {
	Online bool
	// PlayersOnline is the count reported by the status API, passed through
	// verbatim even when it disagrees with len(Players).
	PlayersOnline int
	Players       []Player
}

// MarshalJSON renders the offline snapshot as exactly {"online":false};
// player fields appear only when the server is online.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Online {
		return json.Marshal(struct {
			Online bool `json:"online"`
		}{Online: false})
	}

	players := s.Players
	if players == nil {
		players = []Player{}
	}
	return json.Marshal(struct {
		Online        bool     `json:"online"`
		PlayersOnline int      `json:"playersOnline"`
		Players       []Player `json:"players"`
	}{
		Online:        true,
		PlayersOnline: s.PlayersOnline,
		Players:       players,
	})
}
