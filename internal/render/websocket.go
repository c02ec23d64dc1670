package render

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBufferSize = 16
	writeWait      = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketSink broadcasts every frame as JSON to the connected clients. A
// client whose buffer is full is dropped.
type WebSocketSink struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	server  *http.Server
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("address", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.mu.Unlock()
	log.Info().Str("address", r.RemoteAddr).Int("total", total).Msg("depth client connected")

	go s.writePump(client)
	go s.readPump(client)
}

// Clients returns the number of connected clients.
func (s *WebSocketSink) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *WebSocketSink) Draw(frame Frame) error {
	msg, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			s.dropLocked(client)
		}
	}
	return nil
}

// Serve listens on addr with the sink mounted at /ws.
func (s *WebSocketSink) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)

	s.mu.Lock()
	s.server = &http.Server{Addr: addr, Handler: mux}
	srv := s.server
	s.mu.Unlock()

	log.Info().Str("addr", addr).Msg("serving depth websocket")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close disconnects every client and stops the server if one was started.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		s.dropLocked(client)
	}
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *WebSocketSink) drop(client *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(client)
}

func (s *WebSocketSink) dropLocked(client *wsClient) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.send)
}

func (s *WebSocketSink) writePump(client *wsClient) {
	defer client.conn.Close()
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.drop(client)
			return
		}
	}
	_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only exists to notice the client going away.
func (s *WebSocketSink) readPump(client *wsClient) {
	for {
		if _, _, err := client.conn.NextReader(); err != nil {
			s.drop(client)
			return
		}
	}
}
