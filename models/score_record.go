package models

import (
	"time"
)

// ScoreRecord is append-only: records are never updated or deleted, a
// player's total is the running sum (also cached on PlayerSession.Score).
type ScoreRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID uint      `json:"session_id" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Points    int       `json:"points" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Session GameSession `json:"session,omitempty" gorm:"foreignKey:SessionID"`
	User    User        `json:"user,omitempty"`
}
