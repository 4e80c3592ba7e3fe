package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/evidence-board/internal/game"
)

func TestDecode_Valid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "join normalizes code",
			raw:  `{"event":"join-room","data":{"roomCode":"  ABC ","playerName":"Ana"}}`,
			want: JoinRoom{RoomCode: "abc", PlayerName: "Ana"},
		},
		{
			name: "move",
			raw:  `{"event":"move-player","data":{"roomCode":"Abc","diceValue":4}}`,
			want: MovePlayer{RoomCode: "abc", DiceValue: 4},
		},
		{
			name: "largest dice value",
			raw:  `{"event":"move-player","data":{"roomCode":"abc","diceValue":9223372036854775807}}`,
			want: MovePlayer{RoomCode: "abc", DiceValue: 9223372036854775807},
		},
		{
			name: "evidence",
			raw:  `{"event":"submit-evidence","data":{"roomCode":"abc","evidenceData":{"type":"E","answer":"si","tileName":"Caseta","prompt":"?"}}}`,
			want: SubmitEvidence{RoomCode: "abc", EvidenceData: EvidenceData{Type: "E", Answer: "si", TileName: "Caseta", Prompt: "?"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `nope`},
		{name: "unknown event", raw: `{"event":"fly","data":{}}`},
		{name: "missing data", raw: `{"event":"join-room"}`},
		{name: "blank code", raw: `{"event":"join-room","data":{"roomCode":"  ","playerName":"Ana"}}`},
		{name: "blank name", raw: `{"event":"join-room","data":{"roomCode":"abc","playerName":" "}}`},
		{name: "negative dice", raw: `{"event":"move-player","data":{"roomCode":"abc","diceValue":-1}}`},
		{name: "dice wrong type", raw: `{"event":"move-player","data":{"roomCode":"abc","diceValue":"four"}}`},
		{name: "evidence without code", raw: `{"event":"submit-evidence","data":{"evidenceData":{"type":"E"}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestToCommand(t *testing.T) {
	cmd, ok := ToCommand(MovePlayer{RoomCode: "abc", DiceValue: 3}, "c1")
	require.True(t, ok)
	assert.Equal(t, game.Command{Type: game.CmdMove, ConnID: "c1", DiceValue: 3}, cmd)

	cmd, ok = ToCommand(SubmitEvidence{RoomCode: "abc", EvidenceData: EvidenceData{Type: "S", Prompt: "p"}}, "c2")
	require.True(t, ok)
	assert.Equal(t, game.CmdSubmitEvidence, cmd.Type)
	assert.Equal(t, game.Evidence{Type: "S", Prompt: "p"}, cmd.Evidence)
}

func TestDecode_HugeDiceStillClampsAtGoal(t *testing.T) {
	in, err := Decode([]byte(`{"event":"move-player","data":{"roomCode":"abc","diceValue":9223372036854775807}}`))
	require.NoError(t, err)
	cmd, ok := ToCommand(in, "c1")
	require.True(t, ok)

	s := game.NewState()
	_, err = game.Apply(&s, game.Rules{}, game.Command{Type: game.CmdJoin, ConnID: "c1", PlayerName: "Ana"}, time.Now())
	require.NoError(t, err)
	s.Players[0].Pos = 5

	_, err = game.Apply(&s, game.Rules{}, cmd, time.Now())
	require.NoError(t, err)
	assert.Equal(t, game.MaxPos, s.Players[0].Pos)
}

func TestOutbound_EncodePlayerMoved(t *testing.T) {
	raw, err := Moved(game.Event{Type: game.EvtPlayerMoved, ActivePlayerIndex: 0, NewPos: 4, DiceValue: 4}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"player-moved","data":{"activePlayerIndex":0,"newPos":4,"diceValue":4}}`, string(raw))
}

func TestOutbound_EncodeSnapshotShape(t *testing.T) {
	s := game.NewState()
	raw, err := UpdateState(s).Encode()
	require.NoError(t, err)

	var f struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, EventUpdateState, f.Event)
	assert.Equal(t, []any{}, f.Data["players"])
	assert.Equal(t, float64(0), f.Data["activePlayerIndex"])
	assert.Equal(t, map[string]any{"E": float64(0), "Ca": float64(0), "Co": float64(0), "S": float64(0)}, f.Data["totals"])
	assert.Equal(t, []any{}, f.Data["bitacoraLog"])
}
