package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks ids of messages created locally and not yet accepted
// by the backend.
const TempIDPrefix = "temp-"

func IsTemporaryID(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusConfirmed DeliveryStatus = "confirmed"
	StatusFailed    DeliveryStatus = "failed"
)

type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Message is a normalized chat message. Status is client-side only.
type Message struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Sender    Participant    `json:"sender"`
	Recipient Participant    `json:"recipient"`
	IsRead    bool           `json:"isRead"`
	IsActive  bool           `json:"isActive"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Status    DeliveryStatus `json:"-"`
}

func (m Message) Pending() bool { return m.Status == StatusPending }
func (m Message) Failed() bool  { return m.Status == StatusFailed }

// Counterpart returns the participant of m that is not selfID, and false if
// selfID is not part of m.
func (m Message) Counterpart(selfID string) (Participant, bool) {
	switch selfID {
	case m.Sender.ID:
		return m.Recipient, true
	case m.Recipient.ID:
		return m.Sender, true
	}
	return Participant{}, false
}

// RawMessage is a message as the backend sends it. Content and participants
// are kept raw because their shape varies between endpoints.
type RawMessage struct {
	ID        string          `json:"id"`
	LegacyID  string          `json:"_id"`
	Content   json.RawMessage `json:"content"`
	Sender    json.RawMessage `json:"sender"`
	Recipient json.RawMessage `json:"recipient"`
	IsRead    *bool           `json:"isRead"`
	IsActive  *bool           `json:"isActive"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

func (r *RawMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        json.RawMessage `json:"id"`
		LegacyID  json.RawMessage `json:"_id"`
		Content   json.RawMessage `json:"content"`
		Sender    json.RawMessage `json:"sender"`
		Recipient json.RawMessage `json:"recipient"`
		IsRead    *bool           `json:"isRead"`
		IsActive  *bool           `json:"isActive"`
		CreatedAt string          `json:"createdAt"`
		UpdatedAt string          `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = RawMessage{
		ID:        scalarString(wire.ID),
		LegacyID:  scalarString(wire.LegacyID),
		Content:   wire.Content,
		Sender:    wire.Sender,
		Recipient: wire.Recipient,
		IsRead:    wire.IsRead,
		IsActive:  wire.IsActive,
		CreatedAt: wire.CreatedAt,
		UpdatedAt: wire.UpdatedAt,
	}
	return nil
}

// NormalizeMessage converts raw into a confirmed Message. Missing ids fall
// back to _id and then to a unique placeholder, missing timestamps to now, and a
// missing isActive to true.
func NormalizeMessage(raw RawMessage, now time.Time) Message {
	m := Message{
		ID:        strings.TrimSpace(raw.ID),
		Content:   decodeContent(raw.Content),
		Sender:    decodeParticipant(raw.Sender),
		Recipient: decodeParticipant(raw.Recipient),
		IsActive:  true,
		Status:    StatusConfirmed,
	}
	if m.ID == "" {
		m.ID = strings.TrimSpace(raw.LegacyID)
	}
	if m.ID == "" {
		m.ID = "message-" + uuid.NewString()
	}
	if raw.IsRead != nil {
		m.IsRead = *raw.IsRead
	}
	if raw.IsActive != nil {
		m.IsActive = *raw.IsActive
	}
	m.CreatedAt = parseTimestamp(raw.CreatedAt, now)
	m.UpdatedAt = parseTimestamp(raw.UpdatedAt, m.CreatedAt)
	return m
}

// decodeContent accepts "hi" or {"text":"hi"}.
func decodeContent(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Text
	}
	return ""
}

// decodeParticipant accepts a bare id or an object with id/_id, name and
// avatar.
func decodeParticipant(raw json.RawMessage) Participant {
	if isNull(raw) {
		return Participant{}
	}
	var id string
	if json.Unmarshal(raw, &id) == nil {
		return Participant{ID: strings.TrimSpace(id)}
	}
	var obj struct {
		ID       json.RawMessage `json:"id"`
		LegacyID json.RawMessage `json:"_id"`
		Name     string          `json:"name"`
		Avatar   string          `json:"avatar"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return Participant{}
	}
	p := Participant{
		ID:     scalarString(obj.ID),
		Name:   strings.TrimSpace(obj.Name),
		Avatar: strings.TrimSpace(obj.Avatar),
	}
	if p.ID == "" {
		p.ID = scalarString(obj.LegacyID)
	}
	return p
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
