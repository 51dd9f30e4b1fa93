// Package server is the event gateway: it upgrades websocket connections,
// decodes inbound envelopes and hands them to the registries. No game rules
// live here.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/monitor"
	"github.com/colorsprint/gameserver/network"
	"github.com/colorsprint/gameserver/room"
	"github.com/colorsprint/gameserver/session"
)

type GameServer struct {
	addr      string
	upgrader  websocket.Upgrader
	sessions  *session.Registry
	rooms     *room.Manager
	monitor   *monitor.Monitor
	heartbeat time.Duration
}

func NewGameServer(addr string, sessions *session.Registry, rooms *room.Manager, mon *monitor.Monitor, heartbeat time.Duration) *GameServer {
	return &GameServer{
		addr:      addr,
		sessions:  sessions,
		rooms:     rooms,
		monitor:   mon,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *GameServer) Start() error {
	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	conn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessions.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.ID)

	defer func() {
		userID, last := s.sessions.Unbind(sess.ID)
		if last {
			// Last tab of this identity closed; treat it as a disconnect
			// from their room.
			s.rooms.LeaveOrDisconnect(userID)
		}
		s.monitor.DecOnlinePlayers()
		conn.Close()
		logger.Log.Infof("Connection closed, session ID: %s", sess.ID)
	}()

	// Guests see the lobby before authenticating.
	sess.Send(network.EvtUpdateRoomList, s.rooms.LobbyInfo())

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			return
		}
		s.monitor.IncActionsReceived()
		s.handleEnvelope(sess, env)
	}
}

func (s *GameServer) handleEnvelope(sess *session.Session, env *network.Envelope) {
	switch env.Event {
	case network.EvtAuthenticate:
		s.handleAuthenticate(sess, env.Data)

	case network.EvtRequestRoomList:
		sess.Send(network.EvtUpdateRoomList, s.rooms.LobbyInfo())

	case network.EvtCreateRoom:
		if !s.requireUser(sess) {
			return
		}
		if _, err := s.rooms.CreateRoom(sess.UserID); err != nil {
			s.sendError(sess, err)
		}

	case network.EvtJoinRoom:
		if !s.requireUser(sess) {
			return
		}
		var req struct {
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		if err := s.rooms.JoinRoom(req.RoomID, sess.UserID); err != nil {
			s.sendError(sess, err)
		}

	case network.EvtPlayerAction:
		if sess.UserID == "" {
			return
		}
		var req struct {
			Type string `json:"type"`
			Card string `json:"card"`
		}
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		s.rooms.PlayerAction(sess.UserID, req.Type, req.Card)

	case network.EvtLeaveRoom:
		if sess.UserID == "" {
			return
		}
		s.rooms.LeaveOrDisconnect(sess.UserID)

	default:
		logger.Log.Infof("Unknown event %q from session %s", env.Event, sess.ID)
	}
}

func (s *GameServer) handleAuthenticate(sess *session.Session, data json.RawMessage) {
	var req struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	if data != nil {
		if err := json.Unmarshal(data, &req); err != nil {
			sess.Send(network.EvtAuthError, errorPayload("malformed request"))
			return
		}
	}

	identity, err := s.sessions.Authenticate(req.UserID, req.Name)
	if err != nil {
		sess.Send(network.EvtAuthError, errorPayload(userMessage(err)))
		return
	}
	released, err := s.sessions.Bind(sess, identity.UserID)
	if err != nil {
		sess.Send(network.EvtAuthError, errorPayload(userMessage(err)))
		return
	}
	if released != "" {
		// This tab was the previous identity's last connection; switching
		// identities disconnects the old one from its room.
		s.rooms.LeaveOrDisconnect(released)
	}

	sess.Send(network.EvtAuthenticated, identity)
	sess.Send(network.EvtUpdateRoomList, s.rooms.LobbyInfo())
}

func (s *GameServer) requireUser(sess *session.Session) bool {
	if sess.UserID == "" {
		s.sendError(sess, session.ErrUnknownUser)
		return false
	}
	return true
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	sess.Send(network.EvtError, errorPayload(userMessage(err)))
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}

// userMessage translates the error taxonomy into client-facing text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidName):
		return "Invalid name."
	case errors.Is(err, session.ErrUnknownUser):
		return "Please authenticate first."
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room does not exist."
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, room.ErrGameAlreadyStarted):
		return "Game already started."
	default:
		return "Something went wrong."
	}
}
