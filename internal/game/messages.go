package game

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message type for WebSocket communication between client and server.
// The names match the events of the game server.
type MessageType string

const (
	// Server -> client.
	MsgTypeGameState          MessageType = "gameState"          // Full session snapshot
	MsgTypeTileSelected       MessageType = "tileSelected"       // Some player revealed a tile
	MsgTypeTurnTimeout        MessageType = "turnTimeout"        // A player ran out of time
	MsgTypeScoreUpdate        MessageType = "scoreUpdate"        // {userId, newScore} or a bare number
	MsgTypeDirectScoreUpdate  MessageType = "directScoreUpdate"  // Bare number
	MsgTypeForceScoreUpdate   MessageType = "forceScoreUpdate"   // Bare number, admin override
	MsgTypeBlocked            MessageType = "blocked"            // Account blocked, session is over
	MsgTypeMessage            MessageType = "message"            // Free text for the player
	MsgTypeTestResponse       MessageType = "testResponse"       // Diagnostic echo reply
	MsgTypeTileSelectResponse MessageType = "tileSelectResponse" // Diagnostic reply to selectTile
	MsgTypePing               MessageType = "ping"               // Server pings client to measure RTT

	// Client -> server.
	MsgTypeJoinGame   MessageType = "joinGame"   // Join the session, no payload
	MsgTypeSelectTile MessageType = "selectTile" // Reveal a tile
	MsgTypeLeaveGame  MessageType = "leaveGame"  // Leave the session, no payload
	MsgTypeSyncScore  MessageType = "syncScore"  // Ask the server to push our score
	MsgTypeTest       MessageType = "test"       // Diagnostic echo
	MsgTypePong       MessageType = "pong"       // Client responds to ping
)

// WsMessage represents a WebSocket message.
type WsMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWsMessage creates a new WsMessage with a marshaled payload.
func NewWsMessage(msgType MessageType, payload interface{}) (WsMessage, error) {
	if payload == nil {
		return WsMessage{Type: msgType}, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return WsMessage{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return WsMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}, nil
}

// Parse unmarshals the message payload into one of the message types (StateMessage,
// TileSelectedMessage, ScoreMessage, etc.)
func (m *WsMessage) Parse() (any, error) {
	var target any
	switch m.Type {
	case MsgTypeGameState:
		target = &StateMessage{}
	case MsgTypeTileSelected:
		target = &TileSelectedMessage{}
	case MsgTypeTurnTimeout:
		target = &TurnTimeoutMessage{}
	case MsgTypeScoreUpdate, MsgTypeDirectScoreUpdate, MsgTypeForceScoreUpdate:
		target = &ScoreMessage{}
	case MsgTypeBlocked:
		target = &BlockedMessage{}
	case MsgTypeMessage:
		target = &TextMessage{}
	case MsgTypeTestResponse, MsgTypeTileSelectResponse:
		target = &DiagnosticMessage{}
	case MsgTypePing:
		target = &PingMessage{}
	case MsgTypeSelectTile:
		target = &SelectTileMessage{}
	case MsgTypeSyncScore:
		target = &SyncScoreMessage{}
	case MsgTypeTest:
		target = &EchoMessage{}
	case MsgTypePong:
		target = &PongMessage{}
	case MsgTypeJoinGame, MsgTypeLeaveGame:
		target = &struct{}{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", m.Type)
	}

	if len(m.Payload) == 0 {
		return target, nil
	}

	err := json.Unmarshal(m.Payload, target)
	return target, err
}

// StateMessage is the payload for MsgTypeGameState.
type StateMessage struct {
	Board         []Tile   `json:"board"`
	CurrentPlayer *Player  `json:"currentPlayer"`
	Players       []Player `json:"players"`
	Status        Status   `json:"status"`
	RowSelections []int    `json:"rowSelections,omitempty"`
}

// TileSelectedMessage is the payload for MsgTypeTileSelected.
type TileSelectedMessage struct {
	TileIndex     int      `json:"tileIndex"`
	TileValue     int      `json:"tileValue"` // Server's value, never applied to the local board
	PlayerID      PlayerID `json:"playerId"`
	NewScore      *int     `json:"newScore,omitempty"`
	RowSelections []int    `json:"rowSelections,omitempty"`
}

// TurnTimeoutMessage is the payload for MsgTypeTurnTimeout.
type TurnTimeoutMessage struct {
	PlayerID PlayerID `json:"playerId"`
}

// ScoreMessage is the payload of the three score events. On the wire it is either a
// bare number or an object {userId, newScore}; UserID is nil for the bare form.
type ScoreMessage struct {
	UserID   *PlayerID `json:"userId,omitempty"`
	NewScore int       `json:"newScore"`
}

// UnmarshalJSON accepts both wire forms of a score.
func (m *ScoreMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			UserID   *PlayerID `json:"userId"`
			NewScore int       `json:"newScore"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("score: %w", err)
		}
		if obj.UserID != nil && *obj.UserID == "" {
			obj.UserID = nil
		}
		m.UserID, m.NewScore = obj.UserID, obj.NewScore
		return nil
	}
	var score int
	if err := json.Unmarshal(data, &score); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	m.UserID, m.NewScore = nil, score
	return nil
}

// BlockedMessage is the payload for MsgTypeBlocked: empty.
type BlockedMessage struct{}

// TextMessage is the payload for MsgTypeMessage. The server sends a bare string; an
// object {message} is accepted too.
type TextMessage struct {
	Text string `json:"message"`
}

// UnmarshalJSON accepts a JSON string or an object with a "message" field.
func (m *TextMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("message: %w", err)
		}
		m.Text = obj.Message
		return nil
	}
	return json.Unmarshal(data, &m.Text)
}

// DiagnosticMessage is the payload of the diagnostic replies. It is kept raw and only
// logged.
type DiagnosticMessage struct {
	Raw json.RawMessage
}

// UnmarshalJSON keeps a copy of any JSON value.
func (m *DiagnosticMessage) UnmarshalJSON(data []byte) error {
	m.Raw = append(m.Raw[:0], data...)
	return nil
}

// SelectTileMessage is the payload for MsgTypeSelectTile.
type SelectTileMessage struct {
	TileIndex int `json:"tileIndex"`
}

// SyncScoreMessage is the payload for MsgTypeSyncScore.
type SyncScoreMessage struct {
	UserID PlayerID `json:"userId"`
}

// EchoMessage is the payload for MsgTypeTest.
type EchoMessage struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// PingMessage is the payload for MsgTypePing
type PingMessage struct {
	ServerTime int64 `json:"server_time"` // Nanoseconds since Unix epoch
}

// PongMessage is the payload for MsgTypePong
type PongMessage struct {
	ServerTime int64 `json:"server_time"` // Same value from Ping
	ClientTime int64 `json:"client_time"` // Client's own timestamp
}
