package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGetRemove(t *testing.T) {
	registry := NewSessionRegistry()

	_, ok := registry.Get(1)
	assert.False(t, ok)

	state := newGameState(1, "abc123", "Ocean Voyage", nil, 30, 4)
	registry.Put(1, state)

	got, ok := registry.Get(1)
	require.True(t, ok)
	assert.Same(t, state, got)
	assert.Equal(t, 1, registry.Len())

	registry.Remove(1)
	_, ok = registry.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Len())

	// Removing an absent session is a no-op
	registry.Remove(1)
}

func TestRegistry_ForEachActiveDoesNotBlockOtherSessions(t *testing.T) {
	registry := NewSessionRegistry()
	slow := newGameState(1, "slow11", "", nil, 30, 4)
	fast := newGameState(2, "fast22", "", nil, 30, 4)
	registry.Put(1, slow)
	registry.Put(2, fast)

	entered := make(chan struct{})
	release := make(chan struct{})

	go registry.ForEachActive(func(state *GameState) {
		if state.SessionID == 1 {
			close(entered)
			<-release
		}
	})

	<-entered

	// While the sweep is stuck inside session 1, session 2 and the map
	// itself stay fully usable.
	done := make(chan struct{})
	go func() {
		fast.withLock(func() {})
		registry.Put(3, newGameState(3, "new333", "", nil, 30, 4))
		_, _ = registry.Get(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry blocked other sessions during sweep")
	}
	close(release)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			registry.Put(id, newGameState(id, "", "", nil, 30, 4))
			registry.ForEachActive(func(state *GameState) {})
			_, _ = registry.Get(id)
			registry.Remove(id)
		}(uint(i))
	}
	wg.Wait()

	assert.Equal(t, 0, registry.Len())
}

func TestGameState_UsedWordsCaseInsensitive(t *testing.T) {
	state := newGameState(1, "abc123", "", nil, 30, 4)

	state.withLock(func() {
		assert.False(t, state.wordUsed("Ocean"))
		state.markWordUsed("Ocean")
		assert.True(t, state.wordUsed("ocean"))
		assert.True(t, state.wordUsed("OCEAN"))
		assert.True(t, state.wordUsed("  ocean  "))
	})
}
