// main.go
package main

import (
	"github.com/colorsprint/gameserver/broadcast"
	"github.com/colorsprint/gameserver/config"
	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/monitor"
	"github.com/colorsprint/gameserver/persistence"
	"github.com/colorsprint/gameserver/room"
	"github.com/colorsprint/gameserver/rpc"
	"github.com/colorsprint/gameserver/server"
	"github.com/colorsprint/gameserver/services"
	"github.com/colorsprint/gameserver/session"
	"github.com/colorsprint/gameserver/timer"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	var store persistence.Store
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "pq":
			store, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			store, err = persistence.NewGormStore(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		logger.Log.Infof("Connected to PostgreSQL at %s:%d (%s)", pg.Host, pg.Port, cfg.Database.Driver)
	} else {
		logger.Log.Info("Database disabled, game records will not be persisted")
	}
	records := services.NewRecordService(store)

	mon := monitor.NewMonitor("colorsprint")
	mon.StartServer(cfg.Server.MetricsAddress)

	timers := timer.NewManager()
	sessions := session.NewRegistry()

	rooms := room.NewManager(sessions, timers, cfg.Game.TurnDelay())
	rooms.SetBroadcaster(broadcast.NewUserBroadcaster(sessions))
	rooms.SetRecordSink(records)
	rooms.SetStats(mon)

	admin, err := rpc.NewServer(cfg.Server.RPCAddress, records, rooms)
	if err != nil {
		logger.Log.Fatalf("Failed to start RPC server: %v", err)
	}
	admin.Start()
	defer admin.Stop()

	srv := server.NewGameServer(cfg.Server.HTTPAddress, sessions, rooms, mon, cfg.Game.Heartbeat())
	if err := srv.Start(); err != nil {
		logger.Log.Fatalf("Server exited: %v", err)
	}
}
