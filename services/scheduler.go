package services

import (
	"log"
	"time"
)

// TurnScheduler is the single periodic sweep over every active session.
// Each tick it emits time-remaining updates and force-advances sessions
// whose turn deadline has passed. It is the only path that can advance a
// turn without a player submission.
type TurnScheduler struct {
	registry *SessionRegistry
	game     *GameService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewTurnScheduler(registry *SessionRegistry, game *GameService) *TurnScheduler {
	return &TurnScheduler{
		registry: registry,
		game:     game,
		interval: time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop for a clean shutdown.
func (t *TurnScheduler) Start() {
	go t.run()
}

func (t *TurnScheduler) Stop() {
	close(t.stop)
	<-t.done
}

func (t *TurnScheduler) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.Sweep(now)
		}
	}
}

// Sweep visits every active session once. A panic while processing one
// session is contained so the rest of the sweep still runs.
func (t *TurnScheduler) Sweep(now time.Time) {
	t.registry.ForEachActive(func(state *GameState) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Session %d: recovered from sweep panic: %v", state.SessionID, r)
			}
		}()
		t.game.HandleTick(state, now)
	})
}
