package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ascii-arena/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes; the feed is public
	},
}

// Relay forwards feed messages to other server instances.
type Relay interface {
	Publish(message []byte)
}

// LeaderboardFeed pushes rating updates to every connected browser.
// It implements services.RatingPublisher.
type LeaderboardFeed struct {
	hub   *Hub
	relay Relay
}

func NewLeaderboardFeed() *LeaderboardFeed {
	hub := NewHub()
	go hub.Run()
	return &LeaderboardFeed{hub: hub}
}

// Hub maintains active connections and broadcasts messages
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type WSMessage struct {
	Type   string               `json:"type"`
	Change *models.RatingChange `json:"change,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Debug().Str("remote", client.conn.RemoteAddr().String()).Msg("feed client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow reader; drop it rather than stall everyone else.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for all clients. It never blocks; when the queue
// is full the message is dropped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Msg("leaderboard feed backlog full, dropping update")
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("feed websocket error")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket subscribes the caller to rating updates.
// GET /ws/leaderboard
func (f *LeaderboardFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  f.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case f.hub.register <- client:
	case <-f.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// PublishRatingChange sends a rating_update event to all subscribers.
func (f *LeaderboardFeed) PublishRatingChange(change *models.RatingChange) {
	data, err := json.Marshal(WSMessage{Type: "rating_update", Change: change})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal rating update")
		return
	}
	f.hub.Broadcast(data)
	if f.relay != nil {
		go f.relay.Publish(data)
	}
}

// SetRelay makes the feed forward what it publishes to r. Call before serving.
func (f *LeaderboardFeed) SetRelay(r Relay) {
	f.relay = r
}

// GetHub returns the hub for use by other handlers
func (f *LeaderboardFeed) GetHub() *Hub {
	return f.hub
}

func (f *LeaderboardFeed) Stop() {
	f.hub.Stop()
}
