package game

import (
	"encoding/json"
	"fmt"
)

// PlayerID identifies a player. The server sends ids either as JSON strings or as
// numbers; both decode to the same PlayerID.
type PlayerID string

// UnmarshalJSON accepts a string, a number or null.
func (id *PlayerID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("player id: %w", err)
		}
		*id = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id: %w", err)
	}
	*id = PlayerID(n.String())
	return nil
}

// Player is an entry of the server-owned roster. The client only caches it.
type Player struct {
	ID          PlayerID `json:"id"`
	Username    string   `json:"username"`
	Score       int      `json:"score"`
	IsBlocked   bool     `json:"isBlocked"`
	IsConnected bool     `json:"isConnected"`
}

// Status of a game session.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusWaiting  Status = "waiting"
	StatusFinished Status = "finished"
)
