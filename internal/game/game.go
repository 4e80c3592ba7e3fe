package game

import (
	"errors"
	"time"
)

var ErrNoPlayers = errors.New("room has no players")
var ErrNotYourTurn = errors.New("not your turn")
var ErrNegativeDice = errors.New("dice value must not be negative")
var ErrEmptyName = errors.New("player name is empty")
var ErrUnsupportedCommand = errors.New("unsupported command")

// MaxPos is the goal tile.
const MaxPos = 29

const timestampLayout = "1/2/2006, 3:04:05 PM"

type Category string

const (
	CategoryE  Category = "E"
	CategoryCa Category = "Ca"
	CategoryCo Category = "Co"
	CategoryS  Category = "S"
)

func (c Category) Known() bool {
	switch c {
	case CategoryE, CategoryCa, CategoryCo, CategoryS:
		return true
	}
	return false
}

// Tally counts evidence per category.
type Tally struct {
	E  int `json:"E"`
	Ca int `json:"Ca"`
	Co int `json:"Co"`
	S  int `json:"S"`
}

// Add increments the counter for c and reports whether c is a known category.
func (t *Tally) Add(c Category) bool {
	switch c {
	case CategoryE:
		t.E++
	case CategoryCa:
		t.Ca++
	case CategoryCo:
		t.Co++
	case CategoryS:
		t.S++
	default:
		return false
	}
	return true
}

func (t Tally) Get(c Category) int {
	switch c {
	case CategoryE:
		return t.E
	case CategoryCa:
		return t.Ca
	case CategoryCo:
		return t.Co
	case CategoryS:
		return t.S
	}
	return 0
}

type Player struct {
	ConnID string `json:"id"`
	Name   string `json:"name"`
	Pos    int    `json:"pos"`
	Color  string `json:"color"`
	Avatar string `json:"avatar"`
	Ev     Tally  `json:"ev"`
}

type LogEntry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Player    string `json:"player"`
	TileName  string `json:"tileName"`
	Type      string `json:"type"`
	Prompt    string `json:"prompt"`
	Answer    string `json:"answer"`
}

type State struct {
	Players           []Player   `json:"players"`
	ActivePlayerIndex int        `json:"activePlayerIndex"`
	Totals            Tally      `json:"totals"`
	BitacoraLog       []LogEntry `json:"bitacoraLog"`
}

type Rules struct {
	// StrictTurns requires move and evidence commands to come from the
	// connection bound to the active player.
	StrictTurns bool
}

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdMove           CommandType = "Move"
	CmdSubmitEvidence CommandType = "SubmitEvidence"
)

/*
	CmdJoin           -> EvtPlayerJoined | EvtPlayerReconnected
	CmdMove           -> EvtPlayerMoved (turn stays with the mover)
	CmdSubmitEvidence -> EvtEvidenceLogged -> EvtTurnAdvanced
*/

type Evidence struct {
	Type     string
	Answer   string
	TileName string
	Prompt   string
}

type Command struct {
	Type       CommandType
	ConnID     string
	PlayerName string
	DiceValue  int
	Evidence   Evidence
}

type EventType string

const (
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtPlayerReconnected EventType = "PlayerReconnected"
	EvtPlayerMoved       EventType = "PlayerMoved"
	EvtEvidenceLogged    EventType = "EvidenceLogged"
	EvtTurnAdvanced      EventType = "TurnAdvanced"
)

type Event struct {
	Type              EventType
	PlayerName        string
	ActivePlayerIndex int
	NewPos            int
	DiceValue         int
	Entry             LogEntry
	// Counted is false when an evidence type fell outside the known categories.
	Counted bool
}

// Apply mutates s in place. On error s is left untouched.
func Apply(s *State, rules Rules, cmd Command, now time.Time) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return join(s, cmd)

	case CmdMove:
		p, err := activePlayer(s, rules, cmd)
		if err != nil {
			return nil, err
		}
		if cmd.DiceValue < 0 {
			return nil, ErrNegativeDice
		}

		// Compare against the remaining distance so huge rolls cannot overflow.
		if cmd.DiceValue >= MaxPos-p.Pos {
			p.Pos = MaxPos
		} else {
			p.Pos += cmd.DiceValue
		}

		return []Event{{
			Type:              EvtPlayerMoved,
			PlayerName:        p.Name,
			ActivePlayerIndex: s.ActivePlayerIndex,
			NewPos:            p.Pos,
			DiceValue:         cmd.DiceValue,
		}}, nil

	case CmdSubmitEvidence:
		p, err := activePlayer(s, rules, cmd)
		if err != nil {
			return nil, err
		}

		ev := cmd.Evidence
		entry := LogEntry{
			ID:        len(s.BitacoraLog) + 1,
			Timestamp: now.Format(timestampLayout),
			Player:    p.Name,
			TileName:  ev.TileName,
			Type:      ev.Type,
			Prompt:    ev.Prompt,
			Answer:    ev.Answer,
		}
		s.BitacoraLog = append(s.BitacoraLog, entry)

		cat := Category(ev.Type)
		counted := false
		if cat.Known() {
			p.Ev.Add(cat)
			s.Totals.Add(cat)
			counted = true
		}

		s.ActivePlayerIndex = (s.ActivePlayerIndex + 1) % len(s.Players)

		return []Event{
			{Type: EvtEvidenceLogged, PlayerName: p.Name, Entry: entry, Counted: counted},
			{Type: EvtTurnAdvanced, ActivePlayerIndex: s.ActivePlayerIndex},
		}, nil

	default:
		return nil, ErrUnsupportedCommand
	}
}

func join(s *State, cmd Command) ([]Event, error) {
	if cmd.PlayerName == "" {
		return nil, ErrEmptyName
	}

	if i := findPlayer(s, cmd.PlayerName); i >= 0 {
		// Reconnect: only the connection binding changes.
		s.Players[i].ConnID = cmd.ConnID
		return []Event{{Type: EvtPlayerReconnected, PlayerName: cmd.PlayerName}}, nil
	}

	color, avatar := paletteFor(len(s.Players))
	s.Players = append(s.Players, Player{
		ConnID: cmd.ConnID,
		Name:   cmd.PlayerName,
		Pos:    0,
		Color:  color,
		Avatar: avatar,
	})
	return []Event{{Type: EvtPlayerJoined, PlayerName: cmd.PlayerName}}, nil
}

func activePlayer(s *State, rules Rules, cmd Command) (*Player, error) {
	if len(s.Players) == 0 {
		return nil, ErrNoPlayers
	}
	p := &s.Players[s.ActivePlayerIndex]
	if rules.StrictTurns && p.ConnID != cmd.ConnID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

func findPlayer(s *State, name string) int {
	for i := range s.Players {
		if s.Players[i].Name == name {
			return i
		}
	}
	return -1
}
