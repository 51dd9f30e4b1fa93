// Package room owns the room registry and the session-to-seat lifecycle:
// seat assignment, rejoin, leave/disconnect, snapshot broadcasts and turn
// pacing. All game-rule state lives in the game package.
package room

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/colorsprint/gameserver/game"
	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/models"
	"github.com/colorsprint/gameserver/network"
	"github.com/colorsprint/gameserver/session"
	"github.com/colorsprint/gameserver/state"
	"github.com/colorsprint/gameserver/timer"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 5

// Room pairs one game with its pacing timer. Every mutation of the game
// runs to completion under the mutex, so a turn resolution is atomic with
// respect to player input.
type Room struct {
	game          *game.Game
	nextTurnTimer int64
	mutex         sync.Mutex
}

func (r *Room) snapshotLocked() json.RawMessage {
	data, err := json.Marshal(r.game)
	if err != nil {
		logger.Log.Errorf("Failed to marshal room %s snapshot: %v", r.game.RoomID, err)
		return nil
	}
	return data
}

// Summary is one lobby listing entry.
type Summary struct {
	RoomID      string      `json:"roomId"`
	PlayerCount int         `json:"playerCount"`
	MaxPlayers  int         `json:"maxPlayers"`
	Phase       state.Phase `json:"phase"`
}

// Manager owns every room in the process, keyed by room code, plus the
// user-to-room index used to route player actions.
type Manager struct {
	rooms       map[string]*Room
	userRoom    map[string]string
	sessions    *session.Registry
	timers      *timer.Manager
	broadcaster Broadcaster
	records     RecordSink
	stats       Stats
	turnDelay   time.Duration
	mutex       sync.RWMutex
}

func NewManager(sessions *session.Registry, timers *timer.Manager, turnDelay time.Duration) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		userRoom:  make(map[string]string),
		sessions:  sessions,
		timers:    timers,
		records:   noopSink{},
		stats:     noopStats{},
		turnDelay: turnDelay,
	}
}

// SetBroadcaster wires the outbound side; it must be called before any room
// is created.
func (m *Manager) SetBroadcaster(b Broadcaster) { m.broadcaster = b }

func (m *Manager) SetRecordSink(r RecordSink) {
	if r != nil {
		m.records = r
	}
}

func (m *Manager) SetStats(s Stats) {
	if s != nil {
		m.stats = s
	}
}

// CreateRoom allocates a fresh room with the creator at seat 0.
func (m *Manager) CreateRoom(userID string) (string, error) {
	identity, ok := m.sessions.Identity(userID)
	if !ok {
		return "", session.ErrUnknownUser
	}

	// A user holds at most one room membership; creating a new room
	// implicitly leaves the old one.
	m.LeaveOrDisconnect(userID)

	m.mutex.Lock()
	var code string
	for {
		code = generateCode()
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}
	g := game.New(code, rand.New(rand.NewSource(time.Now().UnixNano())))
	g.AddPlayer(userID, identity.Name)
	r := &Room{game: g}
	m.rooms[code] = r
	m.userRoom[userID] = code
	count := len(m.rooms)
	m.mutex.Unlock()

	m.stats.SetActiveRooms(count)
	logger.Log.Infof("User %s created room %s", userID, code)

	r.mutex.Lock()
	m.sendRoomJoinedLocked(r, userID)
	r.mutex.Unlock()

	m.BroadcastLobby()
	return code, nil
}

// JoinRoom seats an identity, or reconnects it to a seat it already holds.
// The rejoin path works in any phase and never duplicates a seat.
func (m *Manager) JoinRoom(roomID, userID string) error {
	identity, ok := m.sessions.Identity(userID)
	if !ok {
		return session.ErrUnknownUser
	}

	m.mutex.RLock()
	r, exists := m.rooms[roomID]
	m.mutex.RUnlock()
	if !exists {
		return ErrRoomNotFound
	}

	r.mutex.Lock()
	if p, seated := r.game.PlayerByUser(userID); seated {
		p.IsConnected = true
		events := []game.Event{r.game.Logf("Reconnected", "%s reconnected", p.Name)}
		m.sendRoomJoinedLocked(r, userID)
		m.dispatchLocked(r, events)
		r.mutex.Unlock()

		m.setUserRoom(userID, roomID)
		m.BroadcastLobby()
		return nil
	}

	if r.game.Phase != game.PhaseWaiting {
		r.mutex.Unlock()
		return ErrGameAlreadyStarted
	}
	if len(r.game.Players) >= game.RequiredPlayers {
		r.mutex.Unlock()
		return ErrRoomFull
	}

	p := r.game.AddPlayer(userID, identity.Name)
	events := []game.Event{r.game.Logf("Joined", "%s joined the room", p.Name)}
	m.sendRoomJoinedLocked(r, userID)
	m.dispatchLocked(r, events)

	started := r.game.ConnectedCount() == game.RequiredPlayers
	if started {
		m.dispatchLocked(r, r.game.StartTurn())
	}
	r.mutex.Unlock()

	m.setUserRoom(userID, roomID)
	m.BroadcastLobby()
	return nil
}

// LeaveOrDisconnect handles both an explicit leave and the last connection
// of an identity closing. While waiting the seat is removed and the rest
// re-indexed; mid-game the seat survives with isConnected off. A room with
// no connected seats left is destroyed.
func (m *Manager) LeaveOrDisconnect(userID string) {
	r, code := m.roomByUser(userID)
	if r == nil {
		return
	}

	r.mutex.Lock()
	p, seated := r.game.PlayerByUser(userID)
	if !seated {
		r.mutex.Unlock()
		return
	}
	name := p.Name
	waiting := r.game.Phase == game.PhaseWaiting
	if waiting {
		r.game.RemoveSeat(userID)
	} else {
		p.IsConnected = false
	}
	m.dispatchLocked(r, []game.Event{r.game.Logf("Left", "%s left the room", name)})
	empty := r.game.ConnectedCount() == 0
	r.mutex.Unlock()

	if waiting || empty {
		m.clearUserRoom(userID, code)
	}
	if empty {
		m.destroyRoom(code, r)
	}
	m.BroadcastLobby()
}

// PlayerAction routes a card choice or power use to the user's room. A user
// without a room, seat or valid phase is a silent no-op.
func (m *Manager) PlayerAction(userID, actionType, card string) {
	r, _ := m.roomByUser(userID)
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, seated := r.game.PlayerByUser(userID)
	if !seated {
		return
	}

	color, _ := game.ParseColor(card)
	start := time.Now()
	events := r.game.SubmitAction(p.Seat, game.ActionType(actionType), color)
	for _, ev := range events {
		if ev.Kind == game.EventShowChoices {
			m.stats.ObserveTurnResolution(time.Since(start))
			break
		}
	}
	m.dispatchLocked(r, events)
}

// LobbyInfo lists every room for the lobby screen.
func (m *Manager) LobbyInfo() []Summary {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	summaries := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		r.mutex.Lock()
		summaries = append(summaries, Summary{
			RoomID:      r.game.RoomID,
			PlayerCount: r.game.ConnectedCount(),
			MaxPlayers:  game.RequiredPlayers,
			Phase:       r.game.Phase,
		})
		r.mutex.Unlock()
	}
	return summaries
}

// BroadcastLobby pushes the room list to every connected client.
func (m *Manager) BroadcastLobby() {
	if err := m.broadcaster.BroadcastToAll(network.EvtUpdateRoomList, m.LobbyInfo()); err != nil {
		logger.Log.Warnf("Lobby broadcast failed: %v", err)
	}
}

// startTurn re-enters the game through a fresh lookup so that a room
// destroyed while the turn delay was pending is a guarded no-op.
func (m *Manager) startTurn(code string) {
	m.mutex.RLock()
	r, exists := m.rooms[code]
	m.mutex.RUnlock()
	if !exists {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	m.dispatchLocked(r, r.game.StartTurn())
}

// dispatchLocked turns engine events into broadcasts. The caller holds the
// room lock, which keeps the event order on the wire identical to the
// narration order.
func (m *Manager) dispatchLocked(r *Room, events []game.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case game.EventLog:
			m.broadcastRoomLocked(r, network.EvtGameStateUpdate, r.snapshotLocked())

		case game.EventShowChoices:
			m.broadcastRoomLocked(r, network.EvtShowChoices, r.game.Players)

		case game.EventMovements:
			m.broadcastRoomLocked(r, network.EvtVisualizeMovements, r.game.MovementVisuals)

		case game.EventForceReselect:
			for _, seat := range ev.Seats {
				if seat < 0 || seat >= len(r.game.Players) {
					continue
				}
				uid := r.game.Players[seat].UserID
				if err := m.broadcaster.SendToUser(uid, network.EvtForceReselect, nil); err != nil {
					logger.Log.Warnf("Force reselect send to %s failed: %v", uid, err)
				}
			}

		case game.EventGameOver:
			m.broadcastRoomLocked(r, network.EvtGameOver, r.snapshotLocked())
			m.records.SaveGameRecord(buildRecord(r.game))
			m.stats.IncGamesCompleted()

		case game.EventNextTurn:
			code := r.game.RoomID
			r.nextTurnTimer = m.timers.Schedule(m.turnDelay, 0, func() {
				m.startTurn(code)
			})
		}
	}
}

// broadcastRoomLocked delivers to connected seats only; a player who left
// mid-game keeps the seat but drops out of the broadcast group until rejoin.
func (m *Manager) broadcastRoomLocked(r *Room, event string, payload interface{}) {
	userIDs := make([]string, 0, len(r.game.Players))
	for _, p := range r.game.Players {
		if !p.IsConnected {
			continue
		}
		userIDs = append(userIDs, p.UserID)
	}
	if err := m.broadcaster.BroadcastToUsers(userIDs, event, payload); err != nil {
		logger.Log.Warnf("Room %s broadcast failed: %v", r.game.RoomID, err)
	}
}

func (m *Manager) sendRoomJoinedLocked(r *Room, userID string) {
	payload := map[string]interface{}{
		"roomId":    r.game.RoomID,
		"gameState": r.snapshotLocked(),
	}
	if err := m.broadcaster.SendToUser(userID, network.EvtRoomJoined, payload); err != nil {
		logger.Log.Warnf("Room joined send to %s failed: %v", userID, err)
	}
}

func (m *Manager) roomByUser(userID string) (*Room, string) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	code, ok := m.userRoom[userID]
	if !ok {
		return nil, ""
	}
	return m.rooms[code], code
}

func (m *Manager) setUserRoom(userID, code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.rooms[code]; exists {
		m.userRoom[userID] = code
	}
}

func (m *Manager) clearUserRoom(userID, code string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.userRoom[userID] == code {
		delete(m.userRoom, userID)
	}
}

func (m *Manager) destroyRoom(code string, r *Room) {
	m.mutex.Lock()
	if _, exists := m.rooms[code]; !exists {
		m.mutex.Unlock()
		return
	}
	delete(m.rooms, code)
	for uid, c := range m.userRoom {
		if c == code {
			delete(m.userRoom, uid)
		}
	}
	count := len(m.rooms)
	m.mutex.Unlock()

	r.mutex.Lock()
	if r.nextTurnTimer != 0 {
		m.timers.Cancel(r.nextTurnTimer)
	}
	r.mutex.Unlock()

	m.stats.SetActiveRooms(count)
	logger.Log.Infof("Room %s destroyed", code)
}

func buildRecord(g *game.Game) *models.GameRecord {
	rec := &models.GameRecord{
		RoomID:    g.RoomID,
		Turns:     g.Turn,
		CreatedAt: time.Now(),
	}

	bestTurn := 0
	for _, p := range g.Players {
		result := models.PlayerResult{
			UserID:     p.UserID,
			Name:       p.Name,
			Position:   p.Position,
			IsFinished: p.IsFinished,
		}
		if p.FinishTurn != nil {
			result.FinishTurn = *p.FinishTurn
		}
		rec.Players = append(rec.Players, result)

		if p.IsFinished && (bestTurn == 0 || result.FinishTurn < bestTurn) {
			bestTurn = result.FinishTurn
			rec.Winner = p.UserID
		}
	}
	for i := range rec.Players {
		rec.Players[i].Won = rec.Winner != "" && rec.Players[i].UserID == rec.Winner
	}
	return rec
}

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(code)
}
