package services

import (
	"errors"

	"lingoquest/models"

	"gorm.io/gorm"
)

// ContentService manages the orchestrator's read-only collaborator input:
// content configuration, word banks and role cards.
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db}
}

type CreateContentRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Language    string              `json:"language" binding:"omitempty,len=2"`
	TimePerTurn int                 `json:"time_per_turn" binding:"required,min=30,max=90"`
	TurnCycles  int                 `json:"turn_cycles" binding:"required,min=1,max=10"`
	GroupSize   int                 `json:"group_size" binding:"omitempty,min=2,max=12"`
	WordBank    []CreateWordRequest `json:"word_bank" binding:"required,min=1"`
	Roles       []CreateRoleRequest `json:"roles"`
}

type CreateWordRequest struct {
	Word       string `json:"word" binding:"required"`
	Definition string `json:"definition"`
}

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *ContentService) CreateContent(teacherID uint, req *CreateContentRequest) (*models.Content, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	groupSize := req.GroupSize
	if groupSize == 0 {
		groupSize = 6
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	content := models.Content{
		Title:       req.Title,
		Description: req.Description,
		Language:    language,
		TeacherID:   teacherID,
		TimePerTurn: req.TimePerTurn,
		TurnCycles:  req.TurnCycles,
		GroupSize:   groupSize,
	}
	if err := tx.Create(&content).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	seen := make(map[string]bool)
	for i, wReq := range req.WordBank {
		word := normalizeWord(wReq.Word)
		if word == "" || seen[word] {
			tx.Rollback()
			return nil, errors.New("word bank entries must be unique and non-empty")
		}
		seen[word] = true

		entry := models.WordBankEntry{
			ContentID:  content.ID,
			Word:       wReq.Word,
			Definition: wReq.Definition,
			Order:      i + 1,
		}
		if err := tx.Create(&entry).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	for i, rReq := range req.Roles {
		role := models.RoleCard{
			ContentID:   content.ID,
			Name:        rReq.Name,
			Description: rReq.Description,
			Order:       i + 1,
		}
		if err := tx.Create(&role).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetContentByID(content.ID, teacherID)
}

func (s *ContentService) GetTeacherContents(teacherID uint) ([]models.Content, error) {
	var contents []models.Content
	err := s.db.Where("teacher_id = ?", teacherID).
		Preload("WordBank", func(db *gorm.DB) *gorm.DB {
			return db.Order("word_bank_entries.sort_order")
		}).
		Preload("Roles", func(db *gorm.DB) *gorm.DB {
			return db.Order("role_cards.sort_order")
		}).
		Order("created_at DESC").
		Find(&contents).Error
	return contents, err
}

func (s *ContentService) GetContentByID(contentID uint, teacherID uint) (*models.Content, error) {
	var content models.Content
	err := s.db.Where("id = ? AND teacher_id = ?", contentID, teacherID).
		Preload("WordBank", func(db *gorm.DB) *gorm.DB {
			return db.Order("word_bank_entries.sort_order")
		}).
		Preload("Roles", func(db *gorm.DB) *gorm.DB {
			return db.Order("role_cards.sort_order")
		}).
		First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *ContentService) DeleteContent(contentID uint, teacherID uint) error {
	result := s.db.Where("id = ? AND teacher_id = ?", contentID, teacherID).Delete(&models.Content{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("content not found")
	}
	return nil
}
