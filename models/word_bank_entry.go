package models

import (
	"time"

	"gorm.io/gorm"
)

type WordBankEntry struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	ContentID  uint           `json:"content_id" gorm:"not null"`
	Word       string         `json:"word" gorm:"not null"`
	Definition string         `json:"definition"`
	Order      int            `json:"order" gorm:"column:sort_order;not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Content Content `json:"content,omitempty"`
}
