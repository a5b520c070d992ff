package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/taskq/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// WSMessage is a client message on the event socket.
type WSMessage struct {
	Type      string `json:"type"` // subscribe, unsubscribe, ping
	ProjectID string `json:"project_id,omitempty"`
}

// wsFrame is every message the server sends. Type is one of subscribed,
// unsubscribed, pong, event or error.
type wsFrame struct {
	Type      string     `json:"type"`
	Event     string     `json:"event,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
	TaskID    string     `json:"task_id,omitempty"`
	Data      any        `json:"data,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func eventFrame(ev events.Event) wsFrame {
	t := ev.Time
	return wsFrame{
		Type:      "event",
		Event:     string(ev.Type),
		ProjectID: ev.ProjectID,
		TaskID:    ev.TaskID,
		Data:      ev.Data,
		Time:      &t,
	}
}

// WSHandler streams queue events to websocket clients. Each client follows
// at most one project, or every project via events.GlobalProjectID.
type WSHandler struct {
	upgrader  websocket.Upgrader
	publisher events.Publisher
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewWSHandler creates a handler fed by pub.
func NewWSHandler(pub events.Publisher, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		publisher: pub,
		logger:    logger,
		clients:   make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and starts the client loops.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.readLoop()
	go c.writeLoop()
}

// ConnectionCount returns the number of connected clients.
func (h *WSHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WSHandler) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// wsClient is one connection. Only writeLoop writes to conn.
type wsClient struct {
	hub       *WSHandler
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex // guards project and feed
	project string
	feed    <-chan events.Event
}

func (c *wsClient) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.fail("invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		if msg.ProjectID == "" {
			c.fail(`project_id required for subscribe (use "*" for all projects)`)
			return
		}
		c.follow(msg.ProjectID)
		c.enqueue(wsFrame{Type: "subscribed", ProjectID: msg.ProjectID})
	case "unsubscribe":
		c.unfollow()
		c.enqueue(wsFrame{Type: "unsubscribed"})
	case "ping":
		c.enqueue(wsFrame{Type: "pong"})
	default:
		c.fail("unknown message type: " + msg.Type)
	}
}

// follow replaces the current subscription with projectID.
func (c *wsClient) follow(projectID string) {
	c.unfollow()

	feed := c.hub.publisher.Subscribe(projectID)
	c.mu.Lock()
	c.project, c.feed = projectID, feed
	c.mu.Unlock()

	go c.forward(feed)
	c.hub.logger.Debug("websocket subscribed", "project", projectID)
}

func (c *wsClient) unfollow() {
	c.mu.Lock()
	project, feed := c.project, c.feed
	c.project, c.feed = "", nil
	c.mu.Unlock()

	if feed != nil {
		c.hub.publisher.Unsubscribe(project, feed)
	}
}

// forward relays one subscription until it is closed by unfollow or the
// client goes away.
func (c *wsClient) forward(feed <-chan events.Event) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-feed:
			if !ok {
				return
			}
			c.enqueue(eventFrame(ev))
		}
	}
}

// enqueue hands a frame to writeLoop, dropping it when the client is not
// keeping up.
func (c *wsClient) enqueue(f wsFrame) {
	msg, err := json.Marshal(f)
	if err != nil {
		c.hub.logger.Error("marshal websocket frame", "error", err)
		return
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping frame", "type", f.Type)
	}
}

func (c *wsClient) fail(message string) {
	c.enqueue(wsFrame{Type: "error", Error: message})
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()

		c.unfollow()
		close(c.done)
		_ = c.conn.Close()
	})
}
