// Package protocol defines the JSON frames exchanged over the room socket.
//
// Every frame is a text message shaped as {"event": "<name>", "data": {...}}.
//
// Client -> Server
//
//	join-room:       roomCode, playerName
//	move-player:     roomCode, diceValue
//	submit-evidence: roomCode, evidenceData{type, answer, tileName, prompt}
//
// Server -> Client
//
//	update-state: full room snapshot
//	player-moved: activePlayerIndex, newPos, diceValue
//	error:        message (sent only to the offending connection)
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/evidence-board/internal/game"
)

const (
	EventJoinRoom       = "join-room"
	EventMovePlayer     = "move-player"
	EventSubmitEvidence = "submit-evidence"

	EventUpdateState = "update-state"
	EventPlayerMoved = "player-moved"
	EventError       = "error"
)

var ErrMalformed = errors.New("malformed message")

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is one of JoinRoom, MovePlayer or SubmitEvidence.
type Inbound interface {
	isInbound()
	Room() string
}

type JoinRoom struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type MovePlayer struct {
	RoomCode  string `json:"roomCode"`
	DiceValue int    `json:"diceValue"`
}

type EvidenceData struct {
	Type     string `json:"type"`
	Answer   string `json:"answer"`
	TileName string `json:"tileName"`
	Prompt   string `json:"prompt"`
}

type SubmitEvidence struct {
	RoomCode     string       `json:"roomCode"`
	EvidenceData EvidenceData `json:"evidenceData"`
}

func (JoinRoom) isInbound()       {}
func (MovePlayer) isInbound()     {}
func (SubmitEvidence) isInbound() {}

func (m JoinRoom) Room() string       { return m.RoomCode }
func (m MovePlayer) Room() string     { return m.RoomCode }
func (m SubmitEvidence) Room() string { return m.RoomCode }

// Decode parses and validates a client frame. Room codes come back normalized.
func Decode(data []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: bad json", ErrMalformed)
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data for %q", ErrMalformed, f.Event)
	}

	switch f.Event {
	case EventJoinRoom:
		var m JoinRoom
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, f.Event, err)
		}
		m.RoomCode = game.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" {
			return nil, fmt.Errorf("%w: roomCode is required", ErrMalformed)
		}
		if strings.TrimSpace(m.PlayerName) == "" {
			return nil, fmt.Errorf("%w: playerName is required", ErrMalformed)
		}
		return m, nil

	case EventMovePlayer:
		var m MovePlayer
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, f.Event, err)
		}
		m.RoomCode = game.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" {
			return nil, fmt.Errorf("%w: roomCode is required", ErrMalformed)
		}
		if m.DiceValue < 0 {
			return nil, fmt.Errorf("%w: diceValue must not be negative", ErrMalformed)
		}
		return m, nil

	case EventSubmitEvidence:
		var m SubmitEvidence
		if err := json.Unmarshal(f.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, f.Event, err)
		}
		m.RoomCode = game.NormalizeCode(m.RoomCode)
		if m.RoomCode == "" {
			return nil, fmt.Errorf("%w: roomCode is required", ErrMalformed)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformed, f.Event)
	}
}

// ToCommand maps a move or evidence message onto an engine command.
func ToCommand(m Inbound, connID string) (game.Command, bool) {
	switch msg := m.(type) {
	case JoinRoom:
		return game.Command{Type: game.CmdJoin, ConnID: connID, PlayerName: msg.PlayerName}, true
	case MovePlayer:
		return game.Command{Type: game.CmdMove, ConnID: connID, DiceValue: msg.DiceValue}, true
	case SubmitEvidence:
		ev := msg.EvidenceData
		return game.Command{
			Type:   game.CmdSubmitEvidence,
			ConnID: connID,
			Evidence: game.Evidence{
				Type:     ev.Type,
				Answer:   ev.Answer,
				TileName: ev.TileName,
				Prompt:   ev.Prompt,
			},
		}, true
	default:
		return game.Command{}, false
	}
}
