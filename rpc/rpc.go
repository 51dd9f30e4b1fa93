// rpc/rpc.go
package rpc

import (
	"net"
	"net/rpc"

	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/models"
	"github.com/colorsprint/gameserver/room"
	"github.com/colorsprint/gameserver/services"
)

// RoomLister exposes the lobby view to the admin endpoint.
type RoomLister interface {
	LobbyInfo() []room.Summary
}

// Admin is the RPC service registered on the internal admin port.
type Admin struct {
	records *services.RecordService
	rooms   RoomLister
}

type StatsArgs struct {
	UserID string
}

type StatsReply struct {
	Stats *models.PlayerStats
}

func (a *Admin) GetPlayerStats(args *StatsArgs, reply *StatsReply) error {
	stats, err := a.records.GetPlayerStats(args.UserID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []room.Summary
}

func (a *Admin) ListRooms(_ *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Rooms = a.rooms.LobbyInfo()
	return nil
}

// Server serves the Admin service over net/rpc.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(address string, records *services.RecordService, rooms RoomLister) (*Server, error) {
	if err := rpc.Register(&Admin{records: records, rooms: rooms}); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	return &Server{listener: listener, address: address}, nil
}

func (s *Server) Start() {
	logger.Log.Infof("Admin RPC server listening on %s", s.address)
	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				logger.Log.Warnf("RPC accept failed: %v", err)
				return
			}
			go rpc.ServeConn(conn)
		}
	}()
}

func (s *Server) Stop() error {
	return s.listener.Close()
}
