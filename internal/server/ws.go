package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bobmcallan/crab-eval/internal/common"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is the outbound envelope pushed to a subscribed session: the
// event name ("progress", "complete", "started-processing",
// "changing-subject", "successful-upload", "queue_position") plus its
// payload.
type wsMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// inboundMessage is a client -> server WebSocket frame. Only
// get_queue_position is interpreted; anything else is ignored.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub manages WebSocket clients keyed by session id and implements
// evaljob.Sink so Observers can push events to a specific client without
// the evaljob package depending on the transport layer. Clients live in a
// mutex-guarded map, and each push goes to one session rather than being
// broadcast to all clients.
type Hub struct {
	logger *common.Logger

	onDisconnect func(sessionID string)
	onPosition   func(sessionID, jobID string) (status string, position int, found bool)

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	sessionID string
	conn      *websocket.Conn
	send      chan wsMessage
	done      chan struct{}
}

// NewHub returns a Hub. onDisconnect is invoked (outside any lock) when a
// session's socket closes, so the caller can detach its Observer.
// onPosition answers inbound get_queue_position queries.
func NewHub(logger *common.Logger, onDisconnect func(sessionID string), onPosition func(sessionID, jobID string) (string, int, bool)) *Hub {
	return &Hub{
		logger:       logger,
		onDisconnect: onDisconnect,
		onPosition:   onPosition,
		clients:      make(map[string]*wsClient),
	}
}

// Push implements evaljob.Sink: deliver event/payload to sessionID's
// socket, if connected. A session with no live socket is a silent no-op
// (the corresponding Observer was likely attached via a polling status
// call instead of a WebSocket connection).
func (h *Hub) Push(sessionID string, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- wsMessage{Event: event, Payload: payload}:
	case <-c.done:
	default:
		if h.logger != nil {
			h.logger.Warn().Str("session_id", sessionID).Msg("websocket send buffer full, dropping event")
		}
	}
}

// ServeWS upgrades the connection and registers it under sessionID
// (the X-Socket-Id header, else the session_id query parameter, else a
// freshly generated id). Runs
// until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Socket-Id")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		}
		return
	}

	client := &wsClient{sessionID: sessionID, conn: conn, send: make(chan wsMessage, 64), done: make(chan struct{})}

	h.mu.Lock()
	h.clients[sessionID] = client
	h.mu.Unlock()

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
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

func (h *Hub) readPump(c *wsClient) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInbound(c, data)
	}
}

func (h *Hub) handleInbound(c *wsClient, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Event {
	case "get_queue_position":
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if h.onPosition == nil {
			return
		}
		status, position, found := h.onPosition(c.sessionID, req.ID)
		if !found {
			h.Push(c.sessionID, "queue_position", map[string]any{"status": "unknown"})
			return
		}
		payload := map[string]any{"status": status}
		if status == "waiting" {
			payload["position"] = position
		}
		h.Push(c.sessionID, "queue_position", payload)
	}
}

func (h *Hub) disconnect(c *wsClient) {
	h.mu.Lock()
	if h.clients[c.sessionID] == c {
		delete(h.clients, c.sessionID)
	}
	h.mu.Unlock()
	close(c.done)
	c.conn.Close()

	if h.onDisconnect != nil {
		h.onDisconnect(c.sessionID)
	}
}

// ClientCount reports the number of connected sessions, for diagnostics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
