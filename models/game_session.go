package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SessionPending   = "pending"
	SessionActive    = "active"
	SessionCompleted = "completed"
)

type GameSession struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	ContentID  uint           `json:"content_id" gorm:"not null"`
	TeacherID  uint           `json:"teacher_id" gorm:"not null"`
	JoinCode   string         `json:"join_code" gorm:"uniqueIndex;not null"`
	Status     string         `json:"status" gorm:"not null;default:'pending'"` // pending, active, completed
	TotalTurns int            `json:"total_turns"`
	StartedAt  *time.Time     `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Content  Content         `json:"content,omitempty"`
	Teacher  User            `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Players  []PlayerSession `json:"players,omitempty" gorm:"foreignKey:SessionID"`
	Messages []ChatMessage   `json:"messages,omitempty" gorm:"foreignKey:SessionID"`
	Scores   []ScoreRecord   `json:"scores,omitempty" gorm:"foreignKey:SessionID"`
}
