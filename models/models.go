package models

import (
	"time"
)

// PlayerResult is one seat's outcome in a finished game.
type PlayerResult struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
	IsFinished bool   `json:"is_finished"`
	FinishTurn int    `json:"finish_turn,omitempty"`
	Won        bool   `json:"won"`
}

// GameRecord is the persisted result of one finished game. Live room state
// is never persisted; only the outcome is.
type GameRecord struct {
	RoomID    string         `json:"room_id"`
	Turns     int            `json:"turns"`
	Winner    string         `json:"winner"` // userID, empty when nobody finished
	Players   []PlayerResult `json:"players"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlayerStats is the per-identity aggregate across games.
type PlayerStats struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	TotalGames int       `json:"total_games"`
	Wins       int       `json:"wins"`
	UpdatedAt  time.Time `json:"updated_at"`
}
