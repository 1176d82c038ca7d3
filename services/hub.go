package services

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans events out to every websocket subscriber of a session topic.
// Delivery is best-effort, at-most-once: a client whose send buffer is
// full is dropped. Events for one session are published in the order they
// were generated (the game service emits them under the session lock).
type Hub struct {
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	mutex       sync.RWMutex
	gameService *GameService
}

type Client struct {
	hub       *Hub
	id        string
	socket    *websocket.Conn
	send      chan []byte
	joinCode  string
	userID    uint
	nickname  string
	sessionID uint

	// closed is guarded by hub.mutex and set before send is closed, so
	// trySend can never race a channel close.
	closed bool
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetGameService wires the hub to the game service after both exist
// (they reference each other: the service broadcasts, the hub syncs
// state on request).
func (h *Hub) SetGameService(gameService *GameService) {
	h.gameService = gameService
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %s registered for session %s (user %d: %s)", client.id, client.joinCode, client.userID, client.nickname)

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.closed = true
				close(client.send)
				log.Printf("Client %s unregistered from session %s (user %d: %s)", client.id, client.joinCode, client.userID, client.nickname)
			}
			h.mutex.Unlock()
			if ok {
				h.BroadcastToGame(client.joinCode, "player_left", map[string]interface{}{
					"user_id":  client.userID,
					"nickname": client.nickname,
				})
			}
		}
	}
}

// BroadcastToGame publishes one event to every client subscribed to the
// session's join code.
func (h *Hub) BroadcastToGame(joinCode string, messageType string, payload interface{}) {
	message := Message{
		Type:    messageType,
		Payload: payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}

	// Write lock: evicting a slow consumer mutates the client map.
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if strings.EqualFold(client.joinCode, joinCode) {
			select {
			case client.send <- data:
			default:
				// Slow consumer: drop it rather than block the game.
				client.closed = true
				close(client.send)
				delete(h.clients, client)
			}
		}
	}
}

// ConnectedUsers returns the user ids currently subscribed to a session.
func (h *Hub) ConnectedUsers(joinCode string) []uint {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var userIDs []uint
	for client := range h.clients {
		if strings.EqualFold(client.joinCode, joinCode) {
			userIDs = append(userIDs, client.userID)
		}
	}
	return userIDs
}

func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID uint, joinCode string, userID uint, nickname string) *Client {
	client := &Client{
		hub:       h,
		id:        uuid.NewString(),
		socket:    conn,
		send:      make(chan []byte, 256),
		joinCode:  strings.ToLower(joinCode),
		userID:    userID,
		nickname:  nickname,
		sessionID: sessionID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

// trySend queues a message for the client unless it was already evicted.
// The readPump keeps running for a moment after an eviction closes the
// send channel; sending through here instead of directly keeps that
// window from panicking the pump.
func (c *Client) trySend(data []byte) bool {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		response := Message{Type: "pong", Payload: "pong"}
		data, _ := json.Marshal(response)
		c.trySend(data)

	case "request_game_state":
		// Reconnecting client wants the current snapshot.
		c.sendGameStateSync()

	case "player_ready":
		c.sendGameStateSync()

	default:
		log.Printf("Unknown message type %q from user %d in session %s", msg.Type, c.userID, c.joinCode)
	}
}

func (c *Client) sendGameStateSync() {
	if c.hub.gameService == nil {
		return
	}

	snapshot, err := c.hub.gameService.GetGameState(c.sessionID)
	if err != nil {
		log.Printf("Error getting game state for client %s: %v", c.id, err)
		return
	}

	message := Message{
		Type:    "game_state_sync",
		Payload: snapshot,
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling game state sync: %v", err)
		return
	}

	c.trySend(data)
}
