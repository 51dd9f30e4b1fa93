package room

import (
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/colorsprint/gameserver/game"
	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/models"
	"github.com/colorsprint/gameserver/session"
	"github.com/colorsprint/gameserver/timer"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

// fakeBroadcaster records outbound events instead of touching sockets.
type fakeBroadcaster struct {
	mutex  sync.Mutex
	events []string
	toUser map[string][]string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{toUser: make(map[string][]string)}
}

func (b *fakeBroadcaster) BroadcastToUsers(userIDs []string, event string, payload interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.events = append(b.events, event)
	for _, userID := range userIDs {
		b.toUser[userID] = append(b.toUser[userID], event)
	}
	return nil
}

func (b *fakeBroadcaster) BroadcastToAll(event string, payload interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeBroadcaster) SendToUser(userID, event string, payload interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.toUser[userID] = append(b.toUser[userID], event)
	return nil
}

func (b *fakeBroadcaster) userEvents(userID string) []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]string(nil), b.toUser[userID]...)
}

type fakeSink struct {
	mutex   sync.Mutex
	records []*models.GameRecord
}

func (s *fakeSink) SaveGameRecord(rec *models.GameRecord) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records = append(s.records, rec)
}

func newTestManager(t *testing.T) (*Manager, *session.Registry, *fakeBroadcaster) {
	t.Helper()
	sessions := session.NewRegistry()
	// A huge turn delay keeps scheduled turns from firing mid-test.
	m := NewManager(sessions, timer.NewManager(), time.Hour)
	b := newFakeBroadcaster()
	m.SetBroadcaster(b)
	return m, sessions, b
}

func addUser(t *testing.T, sessions *session.Registry, name string) string {
	t.Helper()
	identity, err := sessions.Authenticate("", name)
	if err != nil {
		t.Fatalf("Authenticate(%s): %v", name, err)
	}
	return identity.UserID
}

func (m *Manager) roomForTest(t *testing.T, code string) *Room {
	t.Helper()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[code]
	if !exists {
		t.Fatalf("room %s does not exist", code)
	}
	return r
}

func TestCreateRoomSeatsCreator(t *testing.T) {
	m, sessions, b := newTestManager(t)
	alice := addUser(t, sessions, "alice")

	code, err := m.CreateRoom(alice)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if len(code) != codeLength {
		t.Errorf("room code %q, want %d chars", code, codeLength)
	}

	r := m.roomForTest(t, code)
	if len(r.game.Players) != 1 || r.game.Players[0].UserID != alice {
		t.Fatal("creator not seated at seat 0")
	}
	if r.game.Phase != game.PhaseWaiting {
		t.Errorf("phase = %s, want WAITING", r.game.Phase)
	}
	if got := b.userEvents(alice); len(got) == 0 || got[0] != "roomJoined" {
		t.Errorf("creator events = %v, want roomJoined first", got)
	}
}

func TestCreateRoomRequiresIdentity(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.CreateRoom("nobody"); err != session.ErrUnknownUser {
		t.Errorf("err = %v, want ErrUnknownUser", err)
	}
}

func TestJoinRoomStartsGameWhenFull(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	if err := m.JoinRoom(code, bob); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	r := m.roomForTest(t, code)
	if r.game.Phase != game.PhaseChoosing {
		t.Errorf("phase = %s, want CHOOSING after the second seat", r.game.Phase)
	}
	if len(r.game.Players) != game.RequiredPlayers {
		t.Errorf("players = %d, want %d", len(r.game.Players), game.RequiredPlayers)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")
	carol := addUser(t, sessions, "carol")

	if err := m.JoinRoom("ZZZZZ", bob); err != ErrRoomNotFound {
		t.Errorf("missing room: err = %v, want ErrRoomNotFound", err)
	}

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)

	// The game started, so a stranger cannot take a seat.
	if err := m.JoinRoom(code, carol); err != ErrGameAlreadyStarted {
		t.Errorf("started room: err = %v, want ErrGameAlreadyStarted", err)
	}
}

func TestRejoinNeverDuplicatesSeat(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)

	r := m.roomForTest(t, code)
	m.LeaveOrDisconnect(bob)
	if r.game.Players[1].IsConnected {
		t.Fatal("mid-game leave did not flip isConnected")
	}
	if len(r.game.Players) != 2 {
		t.Fatal("mid-game leave removed the seat")
	}

	if err := m.JoinRoom(code, bob); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(r.game.Players) != 2 {
		t.Errorf("players = %d after rejoin, want 2", len(r.game.Players))
	}
	if !r.game.Players[1].IsConnected {
		t.Error("rejoin did not reconnect the seat")
	}
	if r.game.Players[1].Seat != 1 {
		t.Errorf("seat index = %d changed across rejoin", r.game.Players[1].Seat)
	}
}

func TestLeaveWhileWaitingCompactsSeats(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")

	code, _ := m.CreateRoom(alice)
	r := m.roomForTest(t, code)

	m.LeaveOrDisconnect(alice)
	if len(r.game.Players) != 0 {
		t.Error("waiting-phase leave kept the seat")
	}
	// Last connected seat gone: the room is destroyed.
	m.mutex.RLock()
	_, exists := m.rooms[code]
	m.mutex.RUnlock()
	if exists {
		t.Error("empty room was not destroyed")
	}
}

func TestCreateRoomLeavesPreviousRoom(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")

	first, _ := m.CreateRoom(alice)
	second, _ := m.CreateRoom(alice)
	if first == second {
		t.Fatal("same room code twice")
	}

	m.mutex.RLock()
	_, firstExists := m.rooms[first]
	current := m.userRoom[alice]
	m.mutex.RUnlock()
	if firstExists {
		t.Error("previous room survived its creator leaving")
	}
	if current != second {
		t.Errorf("user mapped to %q, want %q", current, second)
	}
}

func TestPlayerActionRoutesToSeat(t *testing.T) {
	m, sessions, b := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)
	r := m.roomForTest(t, code)

	m.PlayerAction(alice, "CHOOSE_CARD", "R")
	if r.game.Players[0].Choice != game.ColorRed {
		t.Fatal("choice did not reach the seat")
	}

	// Second submission resolves the turn and reveals the choices.
	m.PlayerAction(bob, "CHOOSE_CARD", "G")
	b.mutex.Lock()
	revealed := false
	for _, ev := range b.events {
		if ev == "showChoices" {
			revealed = true
		}
	}
	b.mutex.Unlock()
	if !revealed {
		t.Error("full submission did not reveal choices")
	}

	// Actions from users without a room are silent no-ops.
	m.PlayerAction("nobody", "CHOOSE_CARD", "R")
}

func TestGameOverSavesRecord(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	sink := &fakeSink{}
	m.SetRecordSink(sink)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)
	r := m.roomForTest(t, code)

	// Put the game on the brink: late turn, seat 0 one step from the line.
	r.mutex.Lock()
	r.game.Turn = game.MinTurns + 1
	r.game.Players[0].Position = 9
	r.game.Players[0].PrevPosition = 9
	r.game.GMChoices = []game.Color{game.ColorGreen, game.ColorGreen, game.ColorGreen}
	r.mutex.Unlock()

	m.PlayerAction(alice, "CHOOSE_CARD", "G")
	m.PlayerAction(bob, "CHOOSE_CARD", "G")

	r.mutex.Lock()
	phase := r.game.Phase
	r.mutex.Unlock()
	if phase != game.PhaseGameOver {
		t.Fatalf("phase = %s, want GAMEOVER", phase)
	}

	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if len(sink.records) != 1 {
		t.Fatalf("records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Winner != alice {
		t.Errorf("winner = %s, want alice", rec.Winner)
	}
	if len(rec.Players) != 2 {
		t.Errorf("record players = %d, want 2", len(rec.Players))
	}
	for _, p := range rec.Players {
		if p.UserID == alice && !p.Won {
			t.Error("winner not flagged in the record")
		}
		if p.UserID == bob && p.Won {
			t.Error("loser flagged as winner")
		}
	}
}

func TestLobbyInfo(t *testing.T) {
	m, sessions, _ := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	if got := m.LobbyInfo(); len(got) != 0 {
		t.Fatalf("empty lobby lists %d rooms", len(got))
	}

	codeA, _ := m.CreateRoom(alice)
	codeB, _ := m.CreateRoom(bob)

	summaries := m.LobbyInfo()
	if len(summaries) != 2 {
		t.Fatalf("lobby lists %d rooms, want 2", len(summaries))
	}
	seen := map[string]Summary{}
	for _, s := range summaries {
		seen[s.RoomID] = s
	}
	for _, code := range []string{codeA, codeB} {
		s, ok := seen[code]
		if !ok {
			t.Errorf("room %s missing from the lobby", code)
			continue
		}
		if s.PlayerCount != 1 || s.MaxPlayers != game.RequiredPlayers || s.Phase != game.PhaseWaiting {
			t.Errorf("summary %+v off for a fresh room", s)
		}
	}
}

func TestMidGameLeaverStopsReceivingBroadcasts(t *testing.T) {
	m, sessions, b := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)

	m.LeaveOrDisconnect(bob)
	before := len(b.userEvents(bob))

	// Alice keeps playing; the seat survives but the leaver is out of the
	// broadcast group.
	m.PlayerAction(alice, "CHOOSE_CARD", "R")
	if got := len(b.userEvents(alice)); got == 0 {
		t.Fatal("connected seat received nothing")
	}
	if got := len(b.userEvents(bob)); got != before {
		t.Errorf("leaver received %d more room events", got-before)
	}

	// Rejoining puts him back in the group: the reconnect narration is
	// broadcast with his seat connected again.
	if err := m.JoinRoom(code, bob); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if got := len(b.userEvents(bob)); got <= before {
		t.Fatal("rejoined seat still out of the broadcast group")
	}
}

func TestForceReselectTargetsOnlyVoidedSeats(t *testing.T) {
	m, sessions, b := newTestManager(t)
	alice := addUser(t, sessions, "alice")
	bob := addUser(t, sessions, "bob")

	code, _ := m.CreateRoom(alice)
	m.JoinRoom(code, bob)

	m.PlayerAction(alice, "USE_POWER", "")
	m.PlayerAction(alice, "CHOOSE_CARD", "W")
	m.PlayerAction(bob, "CHOOSE_CARD", "R")

	aliceGot := false
	for _, ev := range b.userEvents(alice) {
		if ev == "forceReselect" {
			aliceGot = true
		}
	}
	if !aliceGot {
		t.Error("voided seat did not receive forceReselect")
	}
	for _, ev := range b.userEvents(bob) {
		if ev == "forceReselect" {
			t.Error("untouched seat received forceReselect")
		}
	}
}
