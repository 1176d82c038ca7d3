package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTestClient(h *Hub, joinCode string, userID uint, buffer int) *Client {
	client := &Client{
		hub:      h,
		id:       "test",
		send:     make(chan []byte, buffer),
		joinCode: joinCode,
		userID:   userID,
	}
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()
	return client
}

func TestBroadcastToGame_TopicIsolation(t *testing.T) {
	hub := NewHub()

	inGame := addTestClient(hub, "abc123", 1, 4)
	inGameUpper := addTestClient(hub, "abc123", 2, 4)
	otherGame := addTestClient(hub, "zzz999", 3, 4)

	hub.BroadcastToGame("ABC123", "turn", map[string]int{"turn": 1})

	require.Len(t, inGame.send, 1)
	require.Len(t, inGameUpper.send, 1)
	assert.Empty(t, otherGame.send, "other sessions must not receive the event")

	var msg Message
	require.NoError(t, json.Unmarshal(<-inGame.send, &msg))
	assert.Equal(t, "turn", msg.Type)
}

func TestBroadcastToGame_DropsSlowConsumer(t *testing.T) {
	hub := NewHub()

	slow := addTestClient(hub, "abc123", 1, 1)
	healthy := addTestClient(hub, "abc123", 2, 4)

	hub.BroadcastToGame("abc123", "turn", map[string]int{"turn": 1})
	// Slow client's buffer is now full; the next event evicts it instead of
	// blocking the broadcast.
	hub.BroadcastToGame("abc123", "turn", map[string]int{"turn": 2})

	assert.Len(t, healthy.send, 2)
	assert.NotContains(t, hub.ConnectedUsers("abc123"), slow.userID)
	assert.Contains(t, hub.ConnectedUsers("abc123"), healthy.userID)
}

func TestHandleMessage_AfterEvictionDropsInsteadOfPanicking(t *testing.T) {
	hub := NewHub()
	slow := addTestClient(hub, "abc123", 1, 1)

	hub.BroadcastToGame("abc123", "turn", map[string]int{"turn": 1})
	// The buffer is full; this broadcast evicts the client and closes its
	// send channel while its read loop is notionally still running.
	hub.BroadcastToGame("abc123", "turn", map[string]int{"turn": 2})

	// A ping handled after the eviction must be dropped, not sent on the
	// closed channel.
	slow.handleMessage(Message{Type: "ping"})
	assert.False(t, slow.trySend([]byte("late")))
}

func TestConnectedUsers(t *testing.T) {
	hub := NewHub()
	addTestClient(hub, "abc123", 1, 4)
	addTestClient(hub, "abc123", 2, 4)
	addTestClient(hub, "zzz999", 3, 4)

	users := hub.ConnectedUsers("abc123")
	assert.ElementsMatch(t, []uint{1, 2}, users)
	assert.Empty(t, hub.ConnectedUsers("nope"))
}
