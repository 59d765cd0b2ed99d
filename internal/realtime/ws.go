package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Type   string `json:"type"`   // "profile" or "conversation"
	UserID string `json:"user_id"`
}

// wsFrame is the outgoing WebSocket message format.
type wsFrame struct {
	Kind  string `json:"kind"` // "event", "ack" or "error"
	Event *Event `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

// RegisterRoutes mounts the realtime WebSocket endpoint.
func RegisterRoutes(r chi.Router, hub *Hub, log *zap.Logger) {
	r.Get("/api/realtime", handleWebSocket(hub, log))
}

func handleWebSocket(hub *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &wsConn{conn: conn, hub: hub, log: log, unsubs: make(map[string]func())}
		defer c.close()
		c.readLoop()
	}
}

// wsConn owns one client connection and its subscription set. The write
// mutex serializes frames coming from hub callbacks and the read loop.
type wsConn struct {
	conn    *websocket.Conn
	hub     *Hub
	log     *zap.Logger
	writeMu sync.Mutex
	mu      sync.Mutex
	unsubs  map[string]func()
}

func (c *wsConn) readLoop() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.sendError("invalid message format")
			continue
		}
		if req.UserID == "" {
			c.sendError("user_id is required")
			continue
		}

		typ := EventType(req.Type)
		if typ != EventProfile && typ != EventConversation {
			c.sendError("unknown event type: " + req.Type)
			continue
		}

		switch req.Action {
		case "subscribe":
			c.subscribe(typ, req.UserID)
		case "unsubscribe":
			c.unsubscribe(typ, req.UserID)
		default:
			c.sendError("unknown action: " + req.Action)
		}
	}
}

func (c *wsConn) subscribe(typ EventType, userID string) {
	key := string(typ) + ":" + userID

	c.mu.Lock()
	if _, ok := c.unsubs[key]; ok {
		c.mu.Unlock()
		c.sendAck()
		return
	}
	c.mu.Unlock()

	unsub := c.hub.Subscribe(typ, userID, func(e Event) {
		c.send(wsFrame{Kind: "event", Event: &e})
	})

	c.mu.Lock()
	c.unsubs[key] = unsub
	c.mu.Unlock()
	c.sendAck()
}

func (c *wsConn) unsubscribe(typ EventType, userID string) {
	key := string(typ) + ":" + userID

	c.mu.Lock()
	unsub, ok := c.unsubs[key]
	if ok {
		delete(c.unsubs, key)
	}
	c.mu.Unlock()

	if ok {
		unsub()
	}
	c.sendAck()
}

func (c *wsConn) close() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = make(map[string]func())
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	c.conn.Close()
}

func (c *wsConn) send(f wsFrame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		c.log.Warn("websocket write", zap.Error(err))
	}
}

func (c *wsConn) sendAck() {
	c.send(wsFrame{Kind: "ack"})
}

func (c *wsConn) sendError(msg string) {
	c.send(wsFrame{Kind: "error", Error: msg})
}
