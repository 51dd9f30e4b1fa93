package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/colorsprint/gameserver/state"
)

const (
	RequiredPlayers = 2
	FinishLine      = 10
	MinTurns        = 10
	MaxTurns        = 30
)

const (
	PhaseWaiting  state.Phase = "WAITING"
	PhaseChoosing state.Phase = "CHOOSING"
	PhaseReveal   state.Phase = "REVEAL"
	PhaseGameOver state.Phase = "GAMEOVER"
)

// Player is one seat in a room. Seats are dense 0..n-1 while the room is
// waiting; once the race starts a seat is never removed, disconnection only
// flips IsConnected.
type Player struct {
	Seat           int    `json:"id"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
	IsConnected    bool   `json:"isConnected"`
	Position       int    `json:"position"`
	PrevPosition   int    `json:"prevPosition"`
	Choice         Color  `json:"choice,omitempty"`
	LastPlayed     Color  `json:"lastPlayed,omitempty"`
	CanUseRemoveGm bool   `json:"canUseRemoveGm"`
	IsFinished     bool   `json:"isFinished"`
	FinishTurn     *int   `json:"finishTurn,omitempty"`
}

// Effects are the three carried-over modifiers armed at the end of a turn
// by a near-unanimous vote and consumed during the following movement step.
type Effects struct {
	HighestPlayerCannotMove bool `json:"highestPlayerCannotMove"`
	LowestPlayerBonusMove   bool `json:"lowestPlayerBonusMove"`
	AllMovesMinusOne        bool `json:"allMovesMinusOne"`
}

// Game holds the full authoritative state of one room. All mutation goes
// through StartTurn and SubmitAction under the owning room's lock; the
// struct serializes directly as the room snapshot.
type Game struct {
	RoomID               string                  `json:"roomId"`
	Turn                 int                     `json:"turn"`
	Phase                state.Phase             `json:"phase"`
	Players              []*Player               `json:"players"`
	GMChoices            []Color                 `json:"gmChoices"`
	PriorityColor        Color                   `json:"priorityColor,omitempty"`
	RemoveGmUsedThisTurn bool                    `json:"removeGmUsedThisTurn"`
	RemoveGmUserSeat     *int                    `json:"removeGmUserSeat,omitempty"`
	ColorCounts          map[Color]int           `json:"colorCounts,omitempty"`
	Effects              Effects                 `json:"specialNextTurnEffects"`
	LogHistory           []LogEntry              `json:"logHistory"`
	LastLog              LogEntry                `json:"lastLog"`
	MovementVisuals      map[int]*MovementVisual `json:"movementVisuals,omitempty"`

	machine *state.Machine
	rng     *rand.Rand
}

// New creates a fresh room state in the waiting phase. A nil rng falls back
// to a time-seeded source; tests inject a fixed seed.
func New(roomID string, rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	machine := state.NewMachine(PhaseWaiting)
	machine.Allow(PhaseWaiting, PhaseChoosing, nil)
	machine.Allow(PhaseChoosing, PhaseReveal, nil)
	machine.Allow(PhaseReveal, PhaseChoosing, nil)
	machine.Allow(PhaseReveal, PhaseGameOver, nil)

	g := &Game{
		RoomID:  roomID,
		Turn:    1,
		Phase:   PhaseWaiting,
		Players: []*Player{},
		machine: machine,
		rng:     rng,
	}
	g.log("Waiting", "waiting for %d players", RequiredPlayers)
	return g
}

// AddPlayer appends a seat at the next index. Callers enforce the phase and
// capacity rules before appending.
func (g *Game) AddPlayer(userID, name string) *Player {
	p := &Player{
		Seat:           len(g.Players),
		UserID:         userID,
		Name:           name,
		IsConnected:    true,
		CanUseRemoveGm: true,
	}
	g.Players = append(g.Players, p)
	return p
}

// PlayerByUser finds the seat held by an identity, if any.
func (g *Game) PlayerByUser(userID string) (*Player, bool) {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

// RemoveSeat drops an identity's seat and compacts the remaining seat
// indices back to 0..n-1. Only meaningful while waiting.
func (g *Game) RemoveSeat(userID string) bool {
	kept := g.Players[:0]
	removed := false
	for _, p := range g.Players {
		if p.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return false
	}
	g.Players = kept
	for i, p := range g.Players {
		p.Seat = i
	}
	return true
}

func (g *Game) ConnectedCount() int {
	n := 0
	for _, p := range g.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// activePlayers are the seats still racing: connected and not finished.
func (g *Game) activePlayers() []*Player {
	var active []*Player
	for _, p := range g.Players {
		if p.IsConnected && !p.IsFinished {
			active = append(active, p)
		}
	}
	return active
}

func (g *Game) anyFinished() bool {
	for _, p := range g.Players {
		if p.IsFinished {
			return true
		}
	}
	return false
}

func (g *Game) setPhase(p state.Phase) error {
	if err := g.machine.Transition(p); err != nil {
		return err
	}
	g.Phase = p
	return nil
}

// Logf appends a lifecycle narration (join, leave, reconnect) so that
// logHistory stays a complete account of the room.
func (g *Game) Logf(tag, format string, args ...interface{}) Event {
	return g.log(tag, format, args...)
}

// log appends a narrated entry and returns the matching event for the
// caller to broadcast.
func (g *Game) log(tag, format string, args ...interface{}) Event {
	entry := LogEntry{Tag: tag, Message: fmt.Sprintf(format, args...)}
	g.LogHistory = append(g.LogHistory, entry)
	g.LastLog = entry
	return Event{Kind: EventLog, Log: entry}
}
