package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	GrammarPerfect     = "perfect"
	GrammarMinorErrors = "minor_errors"
	GrammarMajorErrors = "major_errors"
	GrammarPending     = "pending"
)

type ChatMessage struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	SessionID       uint           `json:"session_id" gorm:"not null"`
	PlayerSessionID uint           `json:"player_session_id" gorm:"not null"`
	SenderID        uint           `json:"sender_id" gorm:"not null"`
	Text            string         `json:"text" gorm:"not null"`
	GrammarStatus   string         `json:"grammar_status" gorm:"not null;default:'pending'"` // perfect, minor_errors, major_errors, pending
	WordBankHits    string         `json:"word_bank_hits"`                                   // comma-separated detected entries
	UsedWordBomb    bool           `json:"used_word_bomb" gorm:"not null;default:false"`
	RoleAppropriate bool           `json:"role_appropriate" gorm:"not null;default:false"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Session GameSession   `json:"session,omitempty" gorm:"foreignKey:SessionID"`
	Player  PlayerSession `json:"player,omitempty" gorm:"foreignKey:PlayerSessionID"`
	Sender  User          `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}
