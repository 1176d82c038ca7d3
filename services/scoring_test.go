package services

import (
	"testing"

	"lingoquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedScoringPlayer(t *testing.T, db *gorm.DB) *models.PlayerSession {
	t.Helper()

	user := models.User{Name: "Amy", Email: "amy@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	teacher := models.User{Name: "T", Email: "t@example.com", Password: "x", Role: "teacher"}
	require.NoError(t, db.Create(&teacher).Error)
	content := models.Content{Title: "Ocean Voyage", TeacherID: teacher.ID, TimePerTurn: 30, TurnCycles: 1}
	require.NoError(t, db.Create(&content).Error)
	session := models.GameSession{ContentID: content.ID, TeacherID: teacher.ID, JoinCode: "abc123", Status: models.SessionActive}
	require.NoError(t, db.Create(&session).Error)

	player := models.PlayerSession{SessionID: session.ID, UserID: user.ID, Nickname: "Amy", Active: true}
	require.NoError(t, db.Create(&player).Error)
	return &player
}

func TestAwardPoints_AppendsLedgerAndTotal(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	pipeline := NewScoringPipeline(db)

	require.NoError(t, pipeline.AwardPoints(player.SessionID, player.UserID, 20, "grammar: perfect"))
	require.NoError(t, pipeline.AwardPoints(player.SessionID, player.UserID, -5, "missed turn"))

	var records []models.ScoreRecord
	require.NoError(t, db.Where("session_id = ?", player.SessionID).Order("id ASC").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, 20, records[0].Points)
	assert.Equal(t, "grammar: perfect", records[0].Reason)
	assert.Equal(t, -5, records[1].Points)
	assert.Equal(t, "missed turn", records[1].Reason)

	var fresh models.PlayerSession
	require.NoError(t, db.First(&fresh, player.ID).Error)
	assert.Equal(t, 15, fresh.Score, "cached total equals the ledger sum")
}

func TestScoreMessage_StreakLaw(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	pipeline := NewScoringPipeline(db)

	steps := []struct {
		status     string
		wantStreak int
	}{
		{models.GrammarPerfect, 1},
		{models.GrammarMinorErrors, 2},
		{models.GrammarPerfect, 3},
		{models.GrammarPending, 3}, // ungraded leaves the streak untouched
		{models.GrammarMajorErrors, 0},
		{models.GrammarPerfect, 1},
	}

	for _, step := range steps {
		_, _, err := pipeline.ScoreMessage(player, Verdict{Status: step.status}, nil, "A fine sentence.")
		require.NoError(t, err)
		assert.Equal(t, step.wantStreak, player.Streak, "after %s", step.status)

		var fresh models.PlayerSession
		require.NoError(t, db.First(&fresh, player.ID).Error)
		assert.Equal(t, step.wantStreak, fresh.Streak, "persisted streak after %s", step.status)
	}
}

func TestScoreMessage_StreakBonusesAndMilestones(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	pipeline := NewScoringPipeline(db)

	// First perfect message: no streak bonus yet.
	awards, _, err := pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPerfect}, nil, "Short one.")
	require.NoError(t, err)
	assert.Equal(t, []ScoreAward{{Points: 20, Reason: "grammar: perfect"}}, awards)

	// Second: streak bonus kicks in at 2.
	awards, _, err = pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPerfect}, nil, "Short one.")
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, 6, awards[1].Points, "streak x2 pays 6")

	// Third: streak bonus plus the milestone at 3.
	awards, _, err = pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPerfect}, nil, "Short one.")
	require.NoError(t, err)
	require.Len(t, awards, 3)
	assert.Equal(t, 9, awards[1].Points)
	assert.Equal(t, 5, awards[2].Points, "milestone bonus at streak 3")
}

func TestScoreMessage_WordBombOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	player.WordBomb = "ocean"
	pipeline := NewScoringPipeline(db)

	awards, usedBomb, err := pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPending}, nil, "The ocean is calm.")
	require.NoError(t, err)
	assert.True(t, usedBomb)
	require.Len(t, awards, 1)
	assert.Equal(t, wordBombBonus, awards[0].Points)

	// Same word again: the bomb is already consumed.
	awards, usedBomb, err = pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPending}, nil, "The ocean is rough.")
	require.NoError(t, err)
	assert.False(t, usedBomb)
	assert.Empty(t, awards)
}

func TestScoreMessage_WordBankBonuses(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	pipeline := NewScoringPipeline(db)

	awards, _, err := pipeline.ScoreMessage(player, Verdict{Status: models.GrammarPending},
		[]string{"ocean", "mountain", "forest"}, "Short one.")
	require.NoError(t, err)

	total := AwardTotal(awards)
	// 3 x per-word + multi-word + mastery
	assert.Equal(t, 3*wordBankBonus+multiWordBonus+tripleWordBonus, total)
}

func TestScoreMessage_RoleBonus(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	player.Role = "ship captain"
	pipeline := NewScoringPipeline(db)

	awards, _, err := pipeline.ScoreMessage(player,
		Verdict{Status: models.GrammarPerfect, RoleAppropriate: true}, nil, "Aye, hold steady.")
	require.NoError(t, err)

	reasons := make([]string, len(awards))
	for i, a := range awards {
		reasons[i] = a.Reason
	}
	assert.Contains(t, reasons, "in character as ship captain")
	assert.Contains(t, reasons, "perfect grammar in character")
}

func TestComplexityAwards(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		total int
	}{
		{name: "single word", text: "ocean", total: 0},
		{name: "short sentence", text: "The ocean is calm today.", total: 0},
		{name: "detailed sentence", text: "The deep blue ocean stretched out before us all.", total: 3},
		{name: "two sentences", text: "We sailed. We swam.", total: 2},
		{
			name:  "long and multi sentence",
			text:  "The deep blue ocean stretched out before us this morning. We watched the enormous waves crash against the old harbor wall.",
			total: 3 + 2 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.total, AwardTotal(complexityAwards(tt.text)))
		})
	}
}

func TestGrammarPointsMapping(t *testing.T) {
	assert.Equal(t, 20, grammarPointsFor(models.GrammarPerfect))
	assert.Equal(t, 16, grammarPointsFor(models.GrammarMinorErrors))
	assert.Equal(t, 10, grammarPointsFor(models.GrammarMajorErrors))
	assert.Equal(t, 0, grammarPointsFor(models.GrammarPending))
}

func TestApplyMissedTurn(t *testing.T) {
	db := newTestDB(t)
	player := seedScoringPlayer(t, db)
	pipeline := NewScoringPipeline(db)

	award, err := pipeline.ApplyMissedTurn(player.SessionID, player.UserID)
	require.NoError(t, err)
	assert.Equal(t, -5, award.Points)
	assert.Equal(t, "missed turn", award.Reason)

	var fresh models.PlayerSession
	require.NoError(t, db.First(&fresh, player.ID).Error)
	assert.Equal(t, -5, fresh.Score)
}
