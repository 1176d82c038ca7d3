package models

import (
	"time"

	"gorm.io/gorm"
)

type Content struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	TeacherID   uint           `json:"teacher_id" gorm:"not null"`
	Language    string         `json:"language" gorm:"not null;default:'en'"`
	TimePerTurn int            `json:"time_per_turn" gorm:"not null;default:60"` // seconds
	TurnCycles  int            `json:"turn_cycles" gorm:"not null;default:2"`
	GroupSize   int            `json:"group_size" gorm:"not null;default:6"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Teacher  User            `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	WordBank []WordBankEntry `json:"word_bank,omitempty" gorm:"foreignKey:ContentID"`
	Roles    []RoleCard      `json:"roles,omitempty" gorm:"foreignKey:ContentID"`
	Sessions []GameSession   `json:"sessions,omitempty" gorm:"foreignKey:ContentID"`
}
