package room

import (
	"time"

	"github.com/colorsprint/gameserver/models"
)

// Broadcaster delivers events to users' live connections. Defined here so
// the broadcast package can depend on room and not the other way around.
type Broadcaster interface {
	BroadcastToUsers(userIDs []string, event string, payload interface{}) error
	BroadcastToAll(event string, payload interface{}) error
	SendToUser(userID string, event string, payload interface{}) error
}

// RecordSink receives the record of a finished game. Implementations must
// not block; the manager calls it while holding the room lock.
type RecordSink interface {
	SaveGameRecord(rec *models.GameRecord)
}

// Stats is the subset of the monitor the room manager reports to.
type Stats interface {
	SetActiveRooms(count int)
	IncGamesCompleted()
	ObserveTurnResolution(d time.Duration)
}

type noopSink struct{}

func (noopSink) SaveGameRecord(*models.GameRecord) {}

type noopStats struct{}

func (noopStats) SetActiveRooms(int)                {}
func (noopStats) IncGamesCompleted()                {}
func (noopStats) ObserveTurnResolution(time.Duration) {}
