package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/marketlab/dauction/pkg/market"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// WSEvent is the envelope for every message pushed to a client.
type WSEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub maintains active WebSocket connections keyed by participant and is the
// engine's notification channel: market broadcasts and direct accept notices
// both go through it. A participant may hold several connections (multiple
// tabs); each gets every message addressed to that participant.
type Hub struct {
	mu            sync.RWMutex
	clients       map[*Client]bool
	byParticipant map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	log *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:       make(map[*Client]bool),
		byParticipant: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		log:           log,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.byParticipant[client.participant] == nil {
				h.byParticipant[client.participant] = make(map[*Client]bool)
			}
			h.byParticipant[client.participant][client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("ws_connected", "participant", client.participant, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("ws_disconnected", "participant", client.participant, "total", total)
		}
	}
}

// drop removes a client and closes its send channel. Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if set := h.byParticipant[client.participant]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byParticipant, client.participant)
		}
	}
	close(client.send)
}

// BroadcastTo sends an event to every connection of the listed participants.
// Best effort: a client with a full buffer is dropped rather than blocked on.
func (h *Hub) BroadcastTo(participants []string, payload any, event string) {
	message, err := json.Marshal(WSEvent{Event: event, Data: payload})
	if err != nil {
		h.log.Warnw("ws_marshal_failed", "event", event, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range participants {
		for client := range h.byParticipant[id] {
			select {
			case client.send <- message:
			default:
				h.drop(client)
			}
		}
	}
}

// DirectNotify sends an event to a single participant.
func (h *Hub) DirectNotify(participant string, payload any, event string) {
	h.BroadcastTo([]string{participant}, payload, event)
}

var _ market.Notifier = (*Hub)(nil)

// Client represents one WebSocket connection bound to a participant.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	participant string
}

// readPump keeps the connection's read side alive (pong handling) and
// unregisters on error. Clients act through REST, so inbound frames are
// discarded.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("ws_read_error", "participant", c.participant, "err", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to current write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

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

// handleWebSocket upgrades the connection and binds it to a participant.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("participant")
	if _, ok := s.session.Snapshot(participant); !ok {
		http.Error(w, "unknown participant", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:         s.hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		participant: participant,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
