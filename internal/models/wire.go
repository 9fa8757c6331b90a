package models

import (
	"encoding/json"
	"strings"
	"time"
)

// WsEvent is the websocket frame envelope.
type WsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	EventJoin         = "join"
	EventNotification = "notification"
	EventMessage      = "message"
)

// JoinPayload is the data of the room-join control frame.
type JoinPayload struct {
	UserID string `json:"userId"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// scalarString renders a JSON string or number as a string; anything else
// yields "".
func scalarString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
