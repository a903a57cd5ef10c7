package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period (must be < pongWait)
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from a peer
	maxMessageSize = 64 * 1024
)

// TopicAll receives every broadcast regardless of session. The UI subscribes
// to it before a generation starts, when no session id exists yet.
const TopicAll = "*"

// Client is one browser connection subscribed to a session topic.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	topic    string
	lastPing time.Time
}

// Hub fans generation progress, log lines and status changes out to the
// connected UI clients, grouped by session topic.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	register chan *Client
	remove   chan *Client
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:  make(map[string]map[*Client]struct{}),
		register: make(chan *Client, 100),
		remove:   make(chan *Client, 100),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]struct{})
			}
			h.clients[client.topic][client] = struct{}{}
			h.mu.Unlock()

			if h.logger != nil {
				h.logger.Info("websocket client connected", zap.String("topic", client.topic))
			}

		case client := <-h.remove:
			h.mu.Lock()
			if clients, ok := h.clients[client.topic]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
				}
				if len(clients) == 0 {
					delete(h.clients, client.topic)
				}
			}
			h.mu.Unlock()

			if h.logger != nil {
				h.logger.Info("websocket client disconnected", zap.String("topic", client.topic))
			}

		case <-ticker.C:
			h.cleanupStale()
		}
	}
}

func (h *Hub) cleanupStale() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for topic, clients := range h.clients {
		for client := range clients {
			if now.Sub(client.lastPing) > pongWait*2 {
				delete(clients, client)
				close(client.send)
			}
		}
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Subscribe registers a connection under a topic and starts its pumps. An
// empty topic subscribes to everything.
func (h *Hub) Subscribe(topic string, conn *websocket.Conn) {
	if topic == "" {
		topic = TopicAll
	}
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		topic:    topic,
		lastPing: time.Now(),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		client.lastPing = time.Now()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.remove <- client
		client.conn.Close()
	}()

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				if h.logger != nil {
					h.logger.Warn("websocket read error", zap.Error(err))
				}
			}
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a payload to every client on the topic, plus the wildcard
// subscribers. Slow clients are dropped rather than blocking the session loop.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(clients map[*Client]struct{}) {
		for client := range clients {
			select {
			case client.send <- payload:
			default:
				go func(c *Client) { h.remove <- c }(client)
			}
		}
	}
	if clients, ok := h.clients[topic]; ok {
		deliver(clients)
	}
	if topic != TopicAll {
		if clients, ok := h.clients[TopicAll]; ok {
			deliver(clients)
		}
	}
}

// BroadcastJSON marshals and broadcasts a message.
func (h *Hub) BroadcastJSON(topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(topic, data)
	return nil
}

// ClientCount returns the number of clients on a topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Close shuts down the hub and closes every client channel.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}
