package services

import (
	"fmt"
	"strings"

	"lingoquest/models"

	"gorm.io/gorm"
)

const (
	grammarPerfectPoints = 20
	grammarMinorPoints   = 16
	grammarMajorPoints   = 10 // participation credit
	streakBonusPerStep   = 3
	wordBombBonus        = 15
	wordBankBonus        = 10
	multiWordBonus       = 5  // 2+ distinct bank entries in one message
	tripleWordBonus      = 10 // 3+ entries, on top of the multi-word bonus
	roleBonus            = 10
	rolePerfectBonus     = 5
	missedTurnPenalty    = -5
)

// streakMilestones pays a flat bonus the moment a streak reaches the key.
var streakMilestones = map[int]int{
	3:  5,
	5:  10,
	8:  15,
	12: 25,
}

// ScoreAward is one line of the per-message point breakdown.
type ScoreAward struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// ScoringPipeline turns a graded message into point awards. Every award
// funnels through AwardPoints, which appends an auditable ScoreRecord and
// bumps the cached PlayerSession total in one transaction - nothing else
// writes totals.
type ScoringPipeline struct {
	db *gorm.DB
}

func NewScoringPipeline(db *gorm.DB) *ScoringPipeline {
	return &ScoringPipeline{db: db}
}

// AwardPoints is the single legal writer of player score. The ScoreRecord
// append and the cached-total increment commit together.
func (p *ScoringPipeline) AwardPoints(sessionID, userID uint, points int, reason string) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		record := models.ScoreRecord{
			SessionID: sessionID,
			UserID:    userID,
			Points:    points,
			Reason:    reason,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&models.PlayerSession{}).
			Where("session_id = ? AND user_id = ?", sessionID, userID).
			Update("score", gorm.Expr("score + ?", points)).Error
	})
}

// ApplyMissedTurn penalizes the current player for letting the clock run
// out. Called only by the scheduler.
func (p *ScoringPipeline) ApplyMissedTurn(sessionID, userID uint) (ScoreAward, error) {
	award := ScoreAward{Points: missedTurnPenalty, Reason: "missed turn"}
	if err := p.AwardPoints(sessionID, userID, award.Points, award.Reason); err != nil {
		return ScoreAward{}, err
	}
	return award, nil
}

// ScoreMessage applies every additive award for one graded submission and
// updates the player's streak and word-bomb state. The returned breakdown
// lists each award separately; their sum is the message's total. The bool
// reports whether this message consumed the player's word bomb.
func (p *ScoringPipeline) ScoreMessage(player *models.PlayerSession, verdict Verdict, wordBankHits []string, text string) ([]ScoreAward, bool, error) {
	var awards []ScoreAward

	// Grammar quality
	grammarPoints := grammarPointsFor(verdict.Status)
	if grammarPoints > 0 {
		awards = append(awards, ScoreAward{
			Points: grammarPoints,
			Reason: fmt.Sprintf("grammar: %s", verdict.Status),
		})
	}

	// Streak bookkeeping: a major-error message breaks the streak, a
	// scored message extends it, an ungraded one leaves it alone.
	switch {
	case verdict.Status == models.GrammarMajorErrors:
		player.Streak = 0
	case grammarPoints > 0:
		player.Streak++
		if player.Streak >= 2 {
			awards = append(awards, ScoreAward{
				Points: player.Streak * streakBonusPerStep,
				Reason: fmt.Sprintf("grammar streak x%d", player.Streak),
			})
		}
		if bonus, ok := streakMilestones[player.Streak]; ok {
			awards = append(awards, ScoreAward{
				Points: bonus,
				Reason: fmt.Sprintf("streak milestone: %d in a row", player.Streak),
			})
		}
	}

	// Word bomb: one-shot bonus per player per game
	usedBomb := false
	if player.WordBomb != "" && !player.WordBombUsed && matchesMorphological(text, player.WordBomb) {
		usedBomb = true
		player.WordBombUsed = true
		awards = append(awards, ScoreAward{
			Points: wordBombBonus,
			Reason: fmt.Sprintf("word bomb used: %s", player.WordBomb),
		})
	}

	// Word-bank usage
	for _, word := range wordBankHits {
		awards = append(awards, ScoreAward{
			Points: wordBankBonus,
			Reason: fmt.Sprintf("word bank: %s", word),
		})
	}
	if len(wordBankHits) >= 2 {
		awards = append(awards, ScoreAward{Points: multiWordBonus, Reason: "multiple word bank words"})
	}
	if len(wordBankHits) >= 3 {
		awards = append(awards, ScoreAward{Points: tripleWordBonus, Reason: "word bank mastery"})
	}

	// Role-appropriateness
	if player.Role != "" && verdict.RoleAppropriate {
		awards = append(awards, ScoreAward{
			Points: roleBonus,
			Reason: fmt.Sprintf("in character as %s", player.Role),
		})
		if verdict.Status == models.GrammarPerfect {
			awards = append(awards, ScoreAward{Points: rolePerfectBonus, Reason: "perfect grammar in character"})
		}
	}

	// Complexity: reward effort, not single-word answers
	for _, award := range complexityAwards(text) {
		awards = append(awards, award)
	}

	for _, award := range awards {
		if err := p.AwardPoints(player.SessionID, player.UserID, award.Points, award.Reason); err != nil {
			return nil, false, err
		}
	}

	// Persist streak and word-bomb state alongside the awards.
	if err := p.db.Model(&models.PlayerSession{}).
		Where("id = ?", player.ID).
		Updates(map[string]interface{}{
			"streak":         player.Streak,
			"word_bomb_used": player.WordBombUsed,
		}).Error; err != nil {
		return nil, false, err
	}

	return awards, usedBomb, nil
}

func grammarPointsFor(status string) int {
	switch status {
	case models.GrammarPerfect:
		return grammarPerfectPoints
	case models.GrammarMinorErrors:
		return grammarMinorPoints
	case models.GrammarMajorErrors:
		return grammarMajorPoints
	default:
		return 0
	}
}

func complexityAwards(text string) []ScoreAward {
	var awards []ScoreAward

	words := len(strings.Fields(text))
	if words >= 8 {
		awards = append(awards, ScoreAward{Points: 3, Reason: "detailed sentence"})
	}
	if words >= 15 {
		awards = append(awards, ScoreAward{Points: 2, Reason: "extended sentence"})
	}

	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}
	if sentences >= 2 {
		awards = append(awards, ScoreAward{Points: 2, Reason: "multiple sentences"})
	}

	return awards
}

// AwardTotal sums a breakdown.
func AwardTotal(awards []ScoreAward) int {
	total := 0
	for _, a := range awards {
		total += a.Points
	}
	return total
}
