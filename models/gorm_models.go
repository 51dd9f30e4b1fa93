package models

import (
	"gorm.io/gorm"
)

// GormGameRecord 持久化的对局记录
type GormGameRecord struct {
	gorm.Model
	RoomID  string         `gorm:"index;not null"`
	Turns   int            `gorm:"not null"`
	Winner  string         `gorm:"index"`
	Players []PlayerResult `gorm:"type:jsonb;serializer:json;not null"`
}

// GormPlayerStats 玩家累计战绩
type GormPlayerStats struct {
	gorm.Model
	UserID     string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	TotalGames int    `gorm:"default:0"`
	Wins       int    `gorm:"default:0"`
}
