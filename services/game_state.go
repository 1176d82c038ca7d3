package services

import (
	"strings"
	"sync"
	"time"
)

const (
	StateWaitingToStart   = "waiting_to_start"
	StateWaitingForPlayer = "waiting_for_player"
	StateTurnInProgress   = "turn_in_progress"
	StateCompleted        = "completed"
)

// StatePlayer is the in-memory view of a PlayerSession needed to run turns.
type StatePlayer struct {
	PlayerSessionID uint   `json:"player_session_id"`
	UserID          uint   `json:"user_id"`
	Nickname        string `json:"nickname"`
	Role            string `json:"role"`
	WordBomb        string `json:"word_bomb"`
}

// GameState is the authoritative in-memory state of one active session.
// It exists exactly while the durable GameSession is active. All fields
// except the immutable ones are guarded by mu; callers go through
// withLock or take mu directly.
type GameState struct {
	mu sync.Mutex

	SessionID       uint          `json:"session_id"`
	JoinCode        string        `json:"join_code"`
	ContentTitle    string        `json:"content_title"`
	Status          string        `json:"status"`
	Players         []StatePlayer `json:"players"`
	CurrentTurn     int           `json:"current_turn"`
	CurrentPlayerID uint          `json:"current_player_id"` // user id of the player on turn
	TotalTurns      int           `json:"total_turns"`
	TimePerTurn     int           `json:"time_per_turn"` // seconds
	TurnStartedAt   time.Time     `json:"turn_started_at"`

	// usedWords is global for the session and only ever grows.
	usedWords map[string]bool

	// lastTurnAt carries Go's monotonic clock reading; the scheduler
	// measures elapsed turn time against it, never against wall clock.
	lastTurnAt time.Time
}

func newGameState(sessionID uint, joinCode, contentTitle string, players []StatePlayer, timePerTurn, totalTurns int) *GameState {
	return &GameState{
		SessionID:    sessionID,
		JoinCode:     joinCode,
		ContentTitle: contentTitle,
		Status:       StateWaitingForPlayer,
		Players:      players,
		CurrentTurn:  1,
		TotalTurns:   totalTurns,
		TimePerTurn:  timePerTurn,
		usedWords:    make(map[string]bool),
	}
}

func (s *GameState) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// wordUsed reports whether a word was already played this session.
// Caller must hold mu.
func (s *GameState) wordUsed(word string) bool {
	return s.usedWords[normalizeWord(word)]
}

// markWordUsed adds a word to the session-wide used set. Caller must hold mu.
func (s *GameState) markWordUsed(word string) {
	s.usedWords[normalizeWord(word)] = true
}

// UsedWords returns a copy of the used-word set for snapshots.
// Caller must hold mu.
func (s *GameState) usedWordList() []string {
	words := make([]string, 0, len(s.usedWords))
	for w := range s.usedWords {
		words = append(words, w)
	}
	return words
}

// currentPlayer returns the player whose turn it is. Caller must hold mu.
func (s *GameState) currentPlayer() (StatePlayer, bool) {
	for _, p := range s.Players {
		if p.UserID == s.CurrentPlayerID {
			return p, true
		}
	}
	return StatePlayer{}, false
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// StateSnapshot is the read-only view handed to HTTP and websocket clients.
type StateSnapshot struct {
	SessionID        uint          `json:"session_id"`
	JoinCode         string        `json:"join_code"`
	ContentTitle     string        `json:"content_title"`
	Status           string        `json:"status"`
	Players          []StatePlayer `json:"players"`
	CurrentTurn      int           `json:"current_turn"`
	CurrentPlayerID  uint          `json:"current_player_id"`
	TotalTurns       int           `json:"total_turns"`
	TimePerTurn      int           `json:"time_per_turn"`
	SecondsRemaining int           `json:"seconds_remaining"`
	UsedWords        []string      `json:"used_words"`
}

// snapshot copies the visible state. Caller must hold mu.
func (s *GameState) snapshot(now time.Time) StateSnapshot {
	remaining := 0
	if s.Status == StateTurnInProgress {
		remaining = s.TimePerTurn - int(now.Sub(s.lastTurnAt).Seconds())
		if remaining < 0 {
			remaining = 0
		}
	}
	players := make([]StatePlayer, len(s.Players))
	copy(players, s.Players)
	return StateSnapshot{
		SessionID:        s.SessionID,
		JoinCode:         s.JoinCode,
		ContentTitle:     s.ContentTitle,
		Status:           s.Status,
		Players:          players,
		CurrentTurn:      s.CurrentTurn,
		CurrentPlayerID:  s.CurrentPlayerID,
		TotalTurns:       s.TotalTurns,
		TimePerTurn:      s.TimePerTurn,
		SecondsRemaining: remaining,
		UsedWords:        s.usedWordList(),
	}
}
