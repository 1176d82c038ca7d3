package models

import (
	"time"

	"gorm.io/gorm"
)

type PlayerSession struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SessionID    uint           `json:"session_id" gorm:"not null"`
	UserID       uint           `json:"user_id" gorm:"not null"`
	Nickname     string         `json:"nickname" gorm:"not null"`
	Role         string         `json:"role"`
	WordBomb     string         `json:"word_bomb"`
	WordBombUsed bool           `json:"word_bomb_used" gorm:"not null;default:false"`
	Score        int            `json:"score" gorm:"not null;default:0"`
	Streak       int            `json:"streak" gorm:"not null;default:0"`
	Active       bool           `json:"active" gorm:"not null;default:true"`
	GroupNumber  int            `json:"group_number" gorm:"not null;default:1"`
	JoinedAt     time.Time      `json:"joined_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Session GameSession `json:"session,omitempty" gorm:"foreignKey:SessionID"`
	User    User        `json:"user,omitempty"`
}
