package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn wraps a websocket.Conn with a write mutex for thread safety.
// gorilla/websocket does NOT support concurrent writes.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) WriteJSONSafe(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

func (c *wsConn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) WriteCloseSafe(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text))
}

// feedFrame is every server → client frame.
type feedFrame struct {
	Type    string       `json:"type"` // "message", "cleared", "error"
	Channel string       `json:"channel,omitempty"`
	Message *bus.Message `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// inboundFrame is a client → server frame: an operator post on the feed's channel.
type inboundFrame struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// handleWS streams one channel to the client.
//
// Protocol:
//
//	server → client: {"type":"message","channel":"General","message":{...}}
//	server → client: {"type":"cleared","channel":"General"}
//	client → server: {"content":"...","sender":"optional"}
//
// The feed starts with the last Backlog messages, then follows the channel
// with its own cursor.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	channel := utils.NormalizeChannel(r.URL.Query().Get("channel"))
	if channel == "" {
		channel = "General"
	}
	if !s.cfg.Bus.Exists(channel) {
		writeJSONError(w, "channel not found", http.StatusNotFound)
		return
	}

	raw, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	conn := &wsConn{Conn: raw}
	peer := r.RemoteAddr
	log.Printf("[WS] Connected: %s (#%s)", peer, channel)

	s.wsMu.Lock()
	s.wsConns[conn] = true
	s.wsMu.Unlock()

	defer func() {
		raw.Close()
		s.wsMu.Lock()
		delete(s.wsConns, conn)
		s.wsMu.Unlock()
		log.Printf("[WS] Disconnected: %s", peer)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readInbound(conn, channel)
	}()

	s.streamFeed(conn, channel, done)
}

// readInbound publishes operator frames until the client goes away.
func (s *Server) readInbound(conn *wsConn, channel string) {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			conn.WriteJSONSafe(feedFrame{Type: "error", Error: "invalid JSON"})
			continue
		}
		if _, errText := s.operatorPublish(channel, in.Sender, in.Content); errText != "" {
			conn.WriteJSONSafe(feedFrame{Type: "error", Error: errText})
		}
	}
}

// streamFeed sends the backlog, then polls the channel with a cursor and
// forwards every new message, including the client's own posts.
func (s *Server) streamFeed(conn *wsConn, channel string, done <-chan struct{}) {
	// A zero cursor reads the whole channel and returns the matching tail in
	// one step, so nothing falls between backlog and feed.
	backlog, cursor := s.cfg.Bus.ReadNew(channel, bus.Cursor{})
	if len(backlog) > s.cfg.Backlog {
		backlog = backlog[len(backlog)-s.cfg.Backlog:]
	}
	for i := range backlog {
		if err := conn.WriteJSONSafe(feedFrame{Type: "message", Channel: channel, Message: &backlog[i]}); err != nil {
			return
		}
	}

	poll := time.NewTicker(s.cfg.FeedInterval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WritePing(); err != nil {
				return
			}
		case <-poll.C:
			msgs, next := s.cfg.Bus.ReadNew(channel, cursor)
			if next.Generation != cursor.Generation {
				if err := conn.WriteJSONSafe(feedFrame{Type: "cleared", Channel: channel}); err != nil {
					return
				}
			}
			cursor = next
			for i := range msgs {
				if err := conn.WriteJSONSafe(feedFrame{Type: "message", Channel: channel, Message: &msgs[i]}); err != nil {
					return
				}
			}
		}
	}
}

// closeAllWS closes all WebSocket connections (called on shutdown).
func (s *Server) closeAllWS() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	for c := range s.wsConns {
		c.WriteCloseSafe(websocket.CloseGoingAway, "server shutdown")
		c.Close()
		delete(s.wsConns, c)
	}
}

// WSConnectionCount returns the number of active WebSocket connections.
func (s *Server) WSConnectionCount() int {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return len(s.wsConns)
}
