// Package ws streams the admin event feed over websockets.
package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/eventfeed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	gameID atomic.Uint32
	done   chan struct{}
}

func (c *Client) wants(rec eventfeed.Record) bool {
	id := uint16(c.gameID.Load())
	return id == 0 || rec.GameID == id
}

type Server struct {
	feed     *eventfeed.Feed
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*Client]bool
}

func NewServer(feed *eventfeed.Feed) *Server {
	return &Server{
		feed:     feed,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[*Client]bool{},
	}
}

// Clients returns the number of connected streams.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// HandleWS upgrades the request and streams records. ?last_id= resumes after
// a record and ?game_id= sets the initial filter.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var gameID uint64
	if v := r.URL.Query().Get("game_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			http.Error(w, `{"error":"invalid_game_id"}`, http.StatusBadRequest)
			return
		}
		gameID = n
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
	client.gameID.Store(uint32(gameID))
	s.register(client)
	go s.writeLoop(client)

	ch := s.feed.Subscribe()
	var sent int64
	for _, rec := range s.feed.ReplayAfter(r.URL.Query().Get("last_id")) {
		sent = rec.Seq()
		if client.wants(rec) {
			safeSend(client.send, encodeRecord(rec))
		}
	}
	go s.pump(client, ch, sent)
	s.readLoop(client)
	s.feed.Unsubscribe(ch)
}

// pump forwards feed records until the client goes away. A client that
// cannot keep up loses records.
func (s *Server) pump(c *Client, ch chan eventfeed.Record, sent int64) {
	for {
		select {
		case <-c.done:
			return
		case rec, ok := <-ch:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"), time.Now().Add(writeWait))
				return
			}
			if rec.Seq() <= sent || !c.wants(rec) {
				continue
			}
			safeSend(c.send, encodeRecord(rec))
		}
	}
}

func encodeRecord(rec eventfeed.Record) []byte {
	b, err := json.Marshal(EventMessage{Type: "event", ProtocolVersion: ProtocolVersion, Record: rec})
	if err != nil {
		log.Warn().Err(err).Str("event", rec.Event).Msg("encode ws event failed")
		return nil
	}
	return b
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "filter":
			var f FilterMessage
			res := FilterResult{Type: "filter_result", ProtocolVersion: ProtocolVersion, Ok: true}
			if err := json.Unmarshal(msg, &f); err != nil {
				res.Ok, res.Error = false, "invalid_filter"
			} else {
				c.gameID.Store(uint32(f.GameID))
				res.GameID = f.GameID
			}
			b, _ := json.Marshal(res)
			safeSend(c.send, b)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clients[c] {
		return
	}
	delete(s.clients, c)
	close(c.done)
	safeClose(c.send)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
