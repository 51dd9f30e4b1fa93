// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/colorsprint/gameserver/models"
)

// GormStore 使用GORM的PostgreSQL实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gl := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gl,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormPlayerStats{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// SaveGameRecord 保存对局并在同一事务里更新每个玩家的战绩
func (s *GormStore) SaveGameRecord(rec *models.GameRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		record := models.GormGameRecord{
			RoomID:  rec.RoomID,
			Turns:   rec.Turns,
			Winner:  rec.Winner,
			Players: rec.Players,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		for _, p := range rec.Players {
			var stats models.GormPlayerStats
			err := tx.Where("user_id = ?", p.UserID).First(&stats).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				stats = models.GormPlayerStats{UserID: p.UserID, Name: p.Name}
			} else if err != nil {
				return err
			}
			stats.Name = p.Name
			stats.TotalGames++
			if p.Won {
				stats.Wins++
			}
			if err := tx.Save(&stats).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetPlayerStats(userID string) (*models.PlayerStats, error) {
	var stats models.GormPlayerStats
	err := s.db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return &models.PlayerStats{
		UserID:     stats.UserID,
		Name:       stats.Name,
		TotalGames: stats.TotalGames,
		Wins:       stats.Wins,
		UpdatedAt:  stats.UpdatedAt,
	}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
