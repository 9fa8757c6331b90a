package livetest

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/addisbroker/realtime/internal/models"
)

// Client is one websocket connection to the test server.
type Client struct {
	server *Server
	room   *Room
	conn   *websocket.Conn
	send   chan []byte
}

func (c *Client) readPump() {
	defer func() {
		if c.room != nil {
			select {
			case c.room.unregisterChan <- c:
			case <-c.room.stopChan:
			}
		}
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		close(c.send)
		_ = c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var evt models.WsEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			// Ignore malformed input; keep the connection alive.
			continue
		}
		if evt.Type != models.EventJoin {
			continue
		}

		var payload models.JoinPayload
		if err := json.Unmarshal(evt.Data, &payload); err != nil || payload.UserID == "" {
			continue
		}
		if c.room == nil {
			c.room = c.server.room(payload.UserID)
			c.room.registerChan <- c
		}
		c.server.recordJoin(payload.UserID)
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}
