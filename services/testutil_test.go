package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"lingoquest/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Content{},
		&models.WordBankEntry{},
		&models.RoleCard{},
		&models.GameSession{},
		&models.PlayerSession{},
		&models.ChatMessage{},
		&models.ScoreRecord{},
	))

	return db
}

// fakeGrader returns a configurable verdict and records calls. Setting
// gradeStarted/gradeRelease turns Grade into a rendezvous so a test can
// hold a grade in flight while the rest of the session moves on.
type fakeGrader struct {
	mu           sync.Mutex
	verdict      Verdict
	vocabWords   []string
	gradeCalls   int
	vocabCalls   int
	gradeStarted chan struct{}
	gradeRelease chan struct{}
}

func (f *fakeGrader) Grade(ctx context.Context, req GradeRequest) Verdict {
	f.mu.Lock()
	f.gradeCalls++
	verdict := f.verdict
	started, release := f.gradeStarted, f.gradeRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return verdict
}

func (f *fakeGrader) DetectVocabulary(ctx context.Context, text string, wordBank []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vocabCalls++
	return f.vocabWords
}

// fakeBroadcaster records every published event in order.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	joinCode    string
	messageType string
	payload     interface{}
}

func (f *fakeBroadcaster) BroadcastToGame(joinCode string, messageType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastEvent{joinCode: joinCode, messageType: messageType, payload: payload})
}

func (f *fakeBroadcaster) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.events))
	for i, e := range f.events {
		types[i] = e.messageType
	}
	return types
}

func (f *fakeBroadcaster) countType(messageType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.messageType == messageType {
			n++
		}
	}
	return n
}

// gameFixture wires a GameService with fakes over an in-memory database
// and seeds one teacher, one content and the requested students.
type gameFixture struct {
	db       *gorm.DB
	registry *SessionRegistry
	grader   *fakeGrader
	hub      *fakeBroadcaster
	game     *GameService
	teacher  models.User
	content  models.Content
	students []models.User
}

func newGameFixture(t *testing.T, studentCount int, words []string, roles []string) *gameFixture {
	t.Helper()

	db := newTestDB(t)
	registry := NewSessionRegistry()
	grader := &fakeGrader{verdict: Verdict{Status: models.GrammarPerfect}}
	hub := &fakeBroadcaster{}
	scoring := NewScoringPipeline(db)
	matcher := NewWordBankMatcher(grader)
	game := NewGameService(db, nil, registry, scoring, grader, matcher, hub, 60, 2)

	teacher := models.User{Name: "Ms. Rivera", Email: "rivera@example.com", Password: "x", Role: "teacher"}
	require.NoError(t, db.Create(&teacher).Error)

	content := models.Content{
		Title:       "Ocean Voyage",
		TeacherID:   teacher.ID,
		TimePerTurn: 30,
		TurnCycles:  1,
		GroupSize:   6,
	}
	require.NoError(t, db.Create(&content).Error)

	for i, word := range words {
		require.NoError(t, db.Create(&models.WordBankEntry{
			ContentID: content.ID,
			Word:      word,
			Order:     i + 1,
		}).Error)
	}
	for i, role := range roles {
		require.NoError(t, db.Create(&models.RoleCard{
			ContentID: content.ID,
			Name:      role,
			Order:     i + 1,
		}).Error)
	}

	students := make([]models.User, 0, studentCount)
	for i := 0; i < studentCount; i++ {
		student := models.User{
			Name:     fmt.Sprintf("Student %d", i+1),
			Email:    fmt.Sprintf("student%d@example.com", i+1),
			Password: "x",
			Role:     "student",
		}
		require.NoError(t, db.Create(&student).Error)
		students = append(students, student)
	}

	return &gameFixture{
		db:       db,
		registry: registry,
		grader:   grader,
		hub:      hub,
		game:     game,
		teacher:  teacher,
		content:  content,
		students: students,
	}
}

// startSession creates a session, joins every student and starts the game.
func (f *gameFixture) startSession(t *testing.T) *GameState {
	t.Helper()

	session, err := f.game.CreateSession(f.teacher.ID, &CreateSessionRequest{ContentID: f.content.ID})
	require.NoError(t, err)

	for i, student := range f.students {
		_, err := f.game.JoinGame(student.ID, &JoinGameRequest{
			JoinCode: session.JoinCode,
			Nickname: fmt.Sprintf("Player %d", i+1),
		})
		require.NoError(t, err)
	}

	state, err := f.game.StartGame(session.ID)
	require.NoError(t, err)
	return state
}

func (f *gameFixture) playerScore(t *testing.T, sessionID, userID uint) int {
	t.Helper()
	var player models.PlayerSession
	require.NoError(t, f.db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&player).Error)
	return player.Score
}

func (f *gameFixture) scoreRecords(t *testing.T, sessionID uint) []models.ScoreRecord {
	t.Helper()
	var records []models.ScoreRecord
	require.NoError(t, f.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&records).Error)
	return records
}
