package game

import (
	"slices"
	"strings"
)

func NewState() State {
	return State{
		Players:           []Player{},
		ActivePlayerIndex: 0,
		BitacoraLog:       []LogEntry{},
	}
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	c := s
	c.Players = slices.Clone(s.Players)
	c.BitacoraLog = slices.Clone(s.BitacoraLog)
	if c.Players == nil {
		c.Players = []Player{}
	}
	if c.BitacoraLog == nil {
		c.BitacoraLog = []LogEntry{}
	}
	return c
}

// NormalizeCode is the single room code policy: trimmed and lower-cased.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
