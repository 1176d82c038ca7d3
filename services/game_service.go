package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	"lingoquest/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrContentNotFound = errors.New("content not found")
	ErrAlreadyActive   = errors.New("game is already active")
	ErrNoPlayers       = errors.New("cannot start a game with no players")
	ErrAlreadyJoined   = errors.New("already joined this session")
	ErrJoinClosed      = errors.New("session is not accepting players")
)

// Broadcaster publishes events to every subscriber of a session's topic.
// Best-effort, at-most-once; the Hub implements it, tests inject a fake.
type Broadcaster interface {
	BroadcastToGame(joinCode string, messageType string, payload interface{})
}

// GameService owns the turn-based session lifecycle: creating and joining
// sessions, starting games, accepting submissions, advancing turns and
// ending games. All per-session mutation happens under that session's
// GameState lock; different sessions never contend.
type GameService struct {
	db       *gorm.DB
	redis    *redis.Client
	registry *SessionRegistry
	scoring  *ScoringPipeline
	grader   Grader
	matcher  *WordBankMatcher
	hub      Broadcaster

	defaultTurnSeconds int
	defaultTurnCycles  int
}

func NewGameService(db *gorm.DB, redisClient *redis.Client, registry *SessionRegistry, scoring *ScoringPipeline, grader Grader, matcher *WordBankMatcher, hub Broadcaster, defaultTurnSeconds, defaultTurnCycles int) *GameService {
	return &GameService{
		db:                 db,
		redis:              redisClient,
		registry:           registry,
		scoring:            scoring,
		grader:             grader,
		matcher:            matcher,
		hub:                hub,
		defaultTurnSeconds: defaultTurnSeconds,
		defaultTurnCycles:  defaultTurnCycles,
	}
}

type CreateSessionRequest struct {
	ContentID uint `json:"content_id" binding:"required"`
}

type JoinGameRequest struct {
	JoinCode string `json:"join_code" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
}

type LeaderboardEntry struct {
	PlayerID uint   `json:"player_id"`
	UserID   uint   `json:"user_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Role     string `json:"role"`
}

// CreateSession creates a pending session for one of the teacher's
// contents and hands back its join code.
func (s *GameService) CreateSession(teacherID uint, req *CreateSessionRequest) (*models.GameSession, error) {
	var content models.Content
	if err := s.db.Where("id = ? AND teacher_id = ?", req.ContentID, teacherID).First(&content).Error; err != nil {
		return nil, ErrContentNotFound
	}

	session := models.GameSession{
		ContentID: content.ID,
		TeacherID: teacherID,
		JoinCode:  s.generateJoinCode(),
		Status:    models.SessionPending,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}

	return &session, nil
}

// JoinGame adds a user to a pending session. Mid-game joins are rejected:
// the turn order is fixed at start.
func (s *GameService) JoinGame(userID uint, req *JoinGameRequest) (*models.PlayerSession, error) {
	code := strings.ToLower(req.JoinCode)

	var session models.GameSession
	if err := s.db.Where("LOWER(join_code) = ?", code).Preload("Content").First(&session).Error; err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != models.SessionPending {
		return nil, ErrJoinClosed
	}

	var existing models.PlayerSession
	if err := s.db.Where("session_id = ? AND user_id = ?", session.ID, userID).First(&existing).Error; err == nil {
		return nil, ErrAlreadyJoined
	}

	var playerCount int64
	s.db.Model(&models.PlayerSession{}).Where("session_id = ?", session.ID).Count(&playerCount)

	groupSize := session.Content.GroupSize
	if groupSize <= 0 {
		groupSize = 6
	}

	player := models.PlayerSession{
		SessionID:   session.ID,
		UserID:      userID,
		Nickname:    req.Nickname,
		Active:      true,
		GroupNumber: int(playerCount)/groupSize + 1,
		JoinedAt:    time.Now(),
	}
	if err := s.db.Create(&player).Error; err != nil {
		return nil, err
	}

	s.hub.BroadcastToGame(session.JoinCode, "player_joined", gin.H{
		"player_id": player.ID,
		"user_id":   player.UserID,
		"nickname":  player.Nickname,
	})

	return &player, nil
}

// StartGame transitions a pending session to active: assigns roles
// round-robin and one random word-bomb target per player, builds the
// in-memory GameState and kicks off the first turn.
func (s *GameService) StartGame(sessionID uint) (*GameState, error) {
	var session models.GameSession
	if err := s.db.Preload("Content").Preload("Content.WordBank").Preload("Content.Roles").
		First(&session, sessionID).Error; err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status == models.SessionActive {
		return nil, ErrAlreadyActive
	}
	if session.Status == models.SessionCompleted {
		return nil, ErrJoinClosed
	}

	var players []models.PlayerSession
	if err := s.db.Where("session_id = ? AND active = ?", session.ID, true).
		Order("joined_at ASC, id ASC").Find(&players).Error; err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}

	turnCycles := session.Content.TurnCycles
	if turnCycles <= 0 {
		turnCycles = s.defaultTurnCycles
	}
	timePerTurn := session.Content.TimePerTurn
	if timePerTurn <= 0 {
		timePerTurn = s.defaultTurnSeconds
	}
	totalTurns := len(players) * turnCycles

	// Claim before touching the player rows so a racing StartGame cannot
	// overwrite the winner's role and word-bomb assignments.
	if err := s.claimStart(session.ID, totalTurns, time.Now()); err != nil {
		return nil, err
	}

	roles := session.Content.Roles
	bank := session.Content.WordBank

	statePlayers := make([]StatePlayer, 0, len(players))
	for i := range players {
		if len(roles) > 0 {
			players[i].Role = roles[i%len(roles)].Name
		}
		if len(bank) > 0 {
			players[i].WordBomb = bank[randomIndex(len(bank))].Word
		}
		if err := s.db.Model(&models.PlayerSession{}).Where("id = ?", players[i].ID).
			Updates(map[string]interface{}{"role": players[i].Role, "word_bomb": players[i].WordBomb}).Error; err != nil {
			return nil, err
		}
		statePlayers = append(statePlayers, StatePlayer{
			PlayerSessionID: players[i].ID,
			UserID:          players[i].UserID,
			Nickname:        players[i].Nickname,
			Role:            players[i].Role,
			WordBomb:        players[i].WordBomb,
		})
	}

	state := newGameState(session.ID, session.JoinCode, session.Content.Title, statePlayers, timePerTurn, totalTurns)
	state.CurrentPlayerID = statePlayers[0].UserID
	s.registry.Put(session.ID, state)

	s.hub.BroadcastToGame(state.JoinCode, "game_started", gin.H{
		"session_id":    state.SessionID,
		"content_title": state.ContentTitle,
		"total_turns":   state.TotalTurns,
		"time_per_turn": state.TimePerTurn,
		"players":       statePlayers,
	})

	state.withLock(func() {
		s.startNextTurnLocked(state)
	})

	return state, nil
}

// claimStart is the atomic pending -> active transition. Two concurrent
// StartGame calls can both read a pending status; the conditional update
// lets exactly one of them win.
func (s *GameService) claimStart(sessionID uint, totalTurns int, now time.Time) error {
	res := s.db.Model(&models.GameSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionPending).
		Updates(map[string]interface{}{
			"status":      models.SessionActive,
			"started_at":  now,
			"total_turns": totalTurns,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyActive
	}
	return nil
}

// startNextTurnLocked begins the turn held in state.CurrentTurn, or ends
// the game once the turn counter passes the total. Caller holds the
// session lock.
func (s *GameService) startNextTurnLocked(state *GameState) {
	if state.CurrentTurn > state.TotalTurns {
		s.endGameLocked(state)
		return
	}

	player, ok := state.currentPlayer()
	if !ok {
		// Current player vanished from the list; ending the session beats
		// corrupting the turn counter.
		log.Printf("Session %d: current player %d missing from player list, ending game", state.SessionID, state.CurrentPlayerID)
		s.endGameLocked(state)
		return
	}

	state.Status = StateTurnInProgress
	now := time.Now()
	state.TurnStartedAt = now
	state.lastTurnAt = now

	s.hub.BroadcastToGame(state.JoinCode, "turn", gin.H{
		"turn":              state.CurrentTurn,
		"total_turns":       state.TotalTurns,
		"player_id":         player.UserID,
		"player_name":       player.Nickname,
		"role":              player.Role,
		"word_bomb":         player.WordBomb,
		"seconds_remaining": state.TimePerTurn,
	})

	s.mirrorState(state)
}

// advanceToNextPlayerLocked rotates to the next player by list index and
// moves the turn counter forward. Caller holds the session lock.
func (s *GameService) advanceToNextPlayerLocked(state *GameState) {
	if len(state.Players) == 0 {
		s.endGameLocked(state)
		return
	}

	idx := 0
	for i, p := range state.Players {
		if p.UserID == state.CurrentPlayerID {
			idx = i
			break
		}
	}
	next := state.Players[(idx+1)%len(state.Players)]

	state.CurrentTurn++
	state.CurrentPlayerID = next.UserID
	state.Status = StateWaitingForPlayer

	s.startNextTurnLocked(state)
}

// EndGame completes a session. Idempotent: ending an absent or
// already-completed session is a no-op.
func (s *GameService) EndGame(sessionID uint) {
	state, ok := s.registry.Get(sessionID)
	if !ok {
		return
	}
	state.withLock(func() {
		s.endGameLocked(state)
	})
}

func (s *GameService) endGameLocked(state *GameState) {
	if state.Status == StateCompleted {
		return
	}
	state.Status = StateCompleted

	now := time.Now()
	if err := s.db.Model(&models.GameSession{}).Where("id = ?", state.SessionID).
		Updates(map[string]interface{}{"status": models.SessionCompleted, "ended_at": now}).Error; err != nil {
		log.Printf("Session %d: failed to persist completion: %v", state.SessionID, err)
	}

	leaderboard, err := s.GetLeaderboard(state.SessionID)
	if err != nil {
		log.Printf("Session %d: failed to load final leaderboard: %v", state.SessionID, err)
	}

	s.hub.BroadcastToGame(state.JoinCode, "game_ended", gin.H{
		"session_id":        state.SessionID,
		"final_leaderboard": leaderboard,
	})

	s.mirrorState(state)
	s.registry.Remove(state.SessionID)
}

// SubmitWord is the only legitimate mutator of the used-word set and the
// synchronization boundary for one session's turn progression. Grading
// runs outside the session lock; the result is re-validated and applied
// under it, so a submission raced by the scheduler's force-advance is
// simply rejected.
func (s *GameService) SubmitWord(ctx context.Context, sessionID, userID uint, word, sentence string) bool {
	state, ok := s.registry.Get(sessionID)
	if !ok {
		return false
	}

	// Quick validation pass; also snapshot what grading needs.
	var (
		valid     bool
		turn      int
		player    StatePlayer
		wordBank  []string
		contextID string
	)
	state.withLock(func() {
		if state.Status != StateTurnInProgress {
			return
		}
		if state.CurrentPlayerID != userID {
			return
		}
		if state.wordUsed(word) {
			return
		}
		valid = true
		turn = state.CurrentTurn
		player, _ = state.currentPlayer()
		contextID = state.ContentTitle
	})
	if !valid {
		return false
	}

	var bankEntries []models.WordBankEntry
	if err := s.db.Joins("JOIN game_sessions ON game_sessions.content_id = word_bank_entries.content_id").
		Where("game_sessions.id = ?", sessionID).Find(&bankEntries).Error; err == nil {
		for _, entry := range bankEntries {
			wordBank = append(wordBank, entry.Word)
		}
	}

	// Grade outside the lock: the remote call may take seconds and must
	// never stall the scheduler or other submissions for this session.
	verdict := s.grader.Grade(ctx, GradeRequest{Text: sentence, Role: player.Role, Context: contextID})
	wordBankHits := s.matcher.Match(ctx, sentence, wordBank)

	var playerSession models.PlayerSession
	if err := s.db.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&playerSession).Error; err != nil {
		log.Printf("Session %d: player session for user %d not found: %v", sessionID, userID, err)
		return false
	}

	applied := false
	state.withLock(func() {
		// Re-validate: the turn may have expired or advanced while the
		// remote grade was in flight.
		if state.Status != StateTurnInProgress || state.CurrentTurn != turn ||
			state.CurrentPlayerID != userID || state.wordUsed(word) {
			return
		}
		applied = true
		state.markWordUsed(word)

		awards, usedBomb, err := s.scoring.ScoreMessage(&playerSession, verdict, wordBankHits, sentence)
		if err != nil {
			log.Printf("Session %d: failed to score submission from user %d: %v", sessionID, userID, err)
		}

		message := models.ChatMessage{
			SessionID:       sessionID,
			PlayerSessionID: playerSession.ID,
			SenderID:        userID,
			Text:            sentence,
			GrammarStatus:   verdict.Status,
			WordBankHits:    strings.Join(wordBankHits, ","),
			UsedWordBomb:    usedBomb,
			RoleAppropriate: verdict.RoleAppropriate,
		}
		if err := s.db.Create(&message).Error; err != nil {
			log.Printf("Session %d: failed to persist chat message: %v", sessionID, err)
		}

		s.hub.BroadcastToGame(state.JoinCode, "score_update", gin.H{
			"player_id":     userID,
			"player_name":   player.Nickname,
			"turn":          turn,
			"grammar":       verdict.Status,
			"feedback":      verdict.Feedback,
			"word_bank":     wordBankHits,
			"awards":        awards,
			"points_earned": AwardTotal(awards),
			"streak":        playerSession.Streak,
		})

		s.advanceToNextPlayerLocked(state)
	})

	return applied
}

// HandleTick is the scheduler's per-session step: emit a timer event at
// the reduced cadence, and force-advance with a penalty once the turn
// deadline passes.
func (s *GameService) HandleTick(state *GameState, now time.Time) {
	state.withLock(func() {
		if state.Status != StateTurnInProgress {
			return
		}

		elapsed := int(now.Sub(state.lastTurnAt).Seconds())
		remaining := state.TimePerTurn - elapsed

		if remaining > 0 {
			if remaining%5 == 0 || remaining <= 10 {
				s.hub.BroadcastToGame(state.JoinCode, "timer_update", gin.H{
					"turn":              state.CurrentTurn,
					"player_id":         state.CurrentPlayerID,
					"seconds_remaining": remaining,
				})
			}
			return
		}

		player, ok := state.currentPlayer()
		if !ok {
			s.endGameLocked(state)
			return
		}

		award, err := s.scoring.ApplyMissedTurn(state.SessionID, player.UserID)
		if err != nil {
			log.Printf("Session %d: failed to apply missed-turn penalty: %v", state.SessionID, err)
		} else {
			s.hub.BroadcastToGame(state.JoinCode, "score_update", gin.H{
				"player_id":     player.UserID,
				"player_name":   player.Nickname,
				"turn":          state.CurrentTurn,
				"awards":        []ScoreAward{award},
				"points_earned": award.Points,
			})
		}

		s.advanceToNextPlayerLocked(state)
	})
}

// GetGameState returns a read-only snapshot: the live state when the
// session is active, the redis mirror as a fallback for reconnects.
func (s *GameService) GetGameState(sessionID uint) (*StateSnapshot, error) {
	if state, ok := s.registry.Get(sessionID); ok {
		var snap StateSnapshot
		state.withLock(func() {
			snap = state.snapshot(time.Now())
		})
		return &snap, nil
	}

	var session models.GameSession
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return nil, ErrSessionNotFound
	}

	if snap := s.mirroredState(session.JoinCode); snap != nil {
		return snap, nil
	}

	// No live state and no mirror: derive a minimal snapshot from the
	// durable records.
	var players []models.PlayerSession
	s.db.Where("session_id = ?", session.ID).Order("joined_at ASC, id ASC").Find(&players)

	snap := StateSnapshot{
		SessionID:  session.ID,
		JoinCode:   session.JoinCode,
		Status:     durableStatusToState(session.Status),
		TotalTurns: session.TotalTurns,
	}
	for _, p := range players {
		snap.Players = append(snap.Players, StatePlayer{
			PlayerSessionID: p.ID,
			UserID:          p.UserID,
			Nickname:        p.Nickname,
			Role:            p.Role,
			WordBomb:        p.WordBomb,
		})
	}
	return &snap, nil
}

// CheckSessionOwnership verifies that a user is the teacher who created
// the session.
func (s *GameService) CheckSessionOwnership(sessionID, userID uint) error {
	var session models.GameSession
	if err := s.db.First(&session, sessionID).Error; err != nil {
		return ErrSessionNotFound
	}
	if session.TeacherID != userID {
		return errors.New("unauthorized to control this session")
	}
	return nil
}

// GetSessionByCode resolves a join code to its durable session.
func (s *GameService) GetSessionByCode(joinCode string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.Where("LOWER(join_code) = ?", strings.ToLower(joinCode)).
		Preload("Players").First(&session).Error
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// GetLeaderboard returns players sorted by score descending; ties keep
// join order.
func (s *GameService) GetLeaderboard(sessionID uint) ([]LeaderboardEntry, error) {
	var players []models.PlayerSession
	if err := s.db.Where("session_id = ?", sessionID).
		Order("score DESC, joined_at ASC, id ASC").Find(&players).Error; err != nil {
		return nil, err
	}

	leaderboard := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		leaderboard = append(leaderboard, LeaderboardEntry{
			PlayerID: p.ID,
			UserID:   p.UserID,
			Name:     p.Nickname,
			Score:    p.Score,
			Role:     p.Role,
		})
	}
	return leaderboard, nil
}

// GetSessionMessages lists a session's chat history for reporting reads.
func (s *GameService) GetSessionMessages(sessionID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

// GetScoreHistory lists the append-only score ledger for a session.
func (s *GameService) GetScoreHistory(sessionID uint) ([]models.ScoreRecord, error) {
	var records []models.ScoreRecord
	err := s.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&records).Error
	return records, err
}

// mirrorState snapshots under the session lock and hands the copy to a
// goroutine for the redis write, so a slow redis never stalls turn
// progress or the scheduler sweep. Best-effort; a redis outage never
// affects gameplay. Caller holds the session lock.
func (s *GameService) mirrorState(state *GameState) {
	if s.redis == nil {
		return
	}
	snap := state.snapshot(time.Now())
	go s.writeMirror(state.JoinCode, snap)
}

func (s *GameService) writeMirror(joinCode string, snap StateSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	key := "game:" + strings.ToLower(joinCode)
	if err := s.redis.Set(context.Background(), key, data, 2*time.Hour).Err(); err != nil {
		log.Printf("Failed to mirror game state to redis: %v", err)
	}
}

func (s *GameService) mirroredState(joinCode string) *StateSnapshot {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(context.Background(), "game:"+strings.ToLower(joinCode)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis error reading game state mirror: %v", err)
		}
		return nil
	}
	var snap StateSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil
	}
	return &snap
}

func durableStatusToState(status string) string {
	switch status {
	case models.SessionActive:
		return StateTurnInProgress
	case models.SessionCompleted:
		return StateCompleted
	default:
		return StateWaitingToStart
	}
}

func (s *GameService) generateJoinCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:6]
}

func randomIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(idx.Int64())
}
