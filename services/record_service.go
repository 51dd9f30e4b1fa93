// services/record_service.go
package services

import (
	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/models"
	"github.com/colorsprint/gameserver/persistence"
)

// RecordService writes finished-game records to the configured store.
// Saves run on their own goroutine so the room manager never blocks on
// database latency; with no store configured every call is a no-op.
type RecordService struct {
	store persistence.Store
}

func NewRecordService(store persistence.Store) *RecordService {
	return &RecordService{store: store}
}

func (s *RecordService) SaveGameRecord(rec *models.GameRecord) {
	if s.store == nil || rec == nil {
		return
	}
	go func() {
		if err := s.store.SaveGameRecord(rec); err != nil {
			logger.Log.Errorf("save game record failed: room=%s err=%v", rec.RoomID, err)
			return
		}
		logger.Log.Infof("game record saved: room=%s turns=%d winner=%s", rec.RoomID, rec.Turns, rec.Winner)
	}()
}

func (s *RecordService) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	if s.store == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return s.store.GetPlayerStats(userID)
}
