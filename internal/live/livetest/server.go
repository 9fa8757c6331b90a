// Package livetest runs an in-process socket backend: clients connect,
// send a join frame naming their user id, and receive whatever is pushed to
// that user's room.
package livetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	rooms   map[string]*Room
	clients map[*Client]bool
	joins   map[string]int
	headers []http.Header
	joined  chan string
}

func NewServer() *Server {
	s := &Server{
		rooms:   make(map[string]*Room),
		clients: make(map[*Client]bool),
		joins:   make(map[string]int),
		joined:  make(chan string, 64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// WSURL returns the ws:// address of the server.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		r.stop()
	}
}

// Push sends payload to every client in userID's room. A []byte or string
// payload is sent verbatim; anything else is JSON encoded.
func (s *Server) Push(userID string, payload any) {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	default:
		var err error
		if b, err = json.Marshal(p); err != nil {
			panic(err)
		}
	}
	s.room(userID).broadcastChan <- b
}

// Joins returns how many join frames userID has sent.
func (s *Server) Joins(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joins[userID]
}

// WaitForJoin blocks until userID joins or timeout elapses.
func (s *Server) WaitForJoin(userID string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case id := <-s.joined:
			if id == userID {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// ConnectionCount returns the number of open client connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Headers returns the headers of every upgrade request so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// DropConnections closes every client connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (s *Server) room(userID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rooms[userID]
	if r == nil {
		r = newRoom(userID)
		s.rooms[userID] = r
	}
	return r
}

func (s *Server) recordJoin(userID string) {
	s.mu.Lock()
	s.joins[userID]++
	s.mu.Unlock()
	select {
	case s.joined <- userID:
	default:
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{server: s, conn: conn, send: make(chan []byte, 256)}

	s.mu.Lock()
	s.clients[c] = true
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	go c.writePump()
	c.readPump()
}
