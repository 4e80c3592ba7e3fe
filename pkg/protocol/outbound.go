package protocol

import (
	"encoding/json"

	"github.com/DoyleJ11/evidence-board/internal/game"
)

type PlayerMoved struct {
	ActivePlayerIndex int `json:"activePlayerIndex"`
	NewPos            int `json:"newPos"`
	DiceValue         int `json:"diceValue"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Outbound is a server frame before encoding.
type Outbound struct {
	Event string
	Data  any
}

func UpdateState(s game.State) Outbound {
	return Outbound{Event: EventUpdateState, Data: s}
}

func Moved(ev game.Event) Outbound {
	return Outbound{Event: EventPlayerMoved, Data: PlayerMoved{
		ActivePlayerIndex: ev.ActivePlayerIndex,
		NewPos:            ev.NewPos,
		DiceValue:         ev.DiceValue,
	}}
}

func Error(msg string) Outbound {
	return Outbound{Event: EventError, Data: ErrorPayload{Message: msg}}
}

func (o Outbound) Encode() ([]byte, error) {
	data, err := json.Marshal(o.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: o.Event, Data: data})
}
