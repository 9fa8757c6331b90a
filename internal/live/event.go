package live

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/addisbroker/realtime/internal/models"
)

var ErrMalformedPayload = errors.New("malformed live payload")

// Event is either a NotificationEvent or a MessageEvent.
type Event interface {
	isEvent()
}

type NotificationEvent struct {
	Notification models.RawNotification
}

type MessageEvent struct {
	Message models.RawMessage
}

func (NotificationEvent) isEvent() {}
func (MessageEvent) isEvent()      {}

// Classify decodes one inbound frame. A frame shaped {"type":..,"data":{..}}
// is unwrapped first; the type tag itself is ignored. The payload is a
// message when it carries non-null content, sender and recipient, and a
// notification otherwise. Anything that is not a JSON object is malformed.
func Classify(frame []byte) (Event, error) {
	fields, ok := decodeObject(frame)
	if !ok {
		return nil, ErrMalformedPayload
	}

	payload := frame
	if _, tagged := fields["type"]; tagged {
		if inner, ok := decodeObject(fields["data"]); ok {
			payload = fields["data"]
			fields = inner
		}
	}

	if present(fields["content"]) && present(fields["sender"]) && present(fields["recipient"]) {
		var msg models.RawMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, ErrMalformedPayload
		}
		return MessageEvent{Message: msg}, nil
	}

	var n models.RawNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, ErrMalformedPayload
	}
	return NotificationEvent{Notification: n}, nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func joinFrame(userID string) ([]byte, error) {
	data, err := json.Marshal(models.JoinPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.WsEvent{Type: models.EventJoin, Data: data})
}
