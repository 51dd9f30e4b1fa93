package persistence

import (
	"errors"

	"github.com/colorsprint/gameserver/models"
)

// Store persists finished-game records and the per-player aggregates
// derived from them. Live room and session state never goes through here.
type Store interface {
	SaveGameRecord(rec *models.GameRecord) error
	GetPlayerStats(userID string) (*models.PlayerStats, error)
	Close() error
}

var ErrRecordNotFound = errors.New("record not found")
