package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	PropertyApproved NotificationType = "propertyApproved"
	PropertyRejected NotificationType = "propertyRejected"
	PropertyUpdated  NotificationType = "propertyUpdated"
	PasswordReset    NotificationType = "passwordReset"
)

const (
	defaultNotificationTitle   = "Notification"
	defaultNotificationMessage = "You have a new notification"
)

// Notification is a normalized notification record. Every field a consumer
// reads is populated, whatever the backend sent.
type Notification struct {
	ID        string           `json:"id"`
	LegacyID  string           `json:"_id,omitempty"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// RawNotification is a notification as it arrives from the backend, either
// in the initial fetch or pushed over the live channel. Any field may be
// missing.
type RawNotification struct {
	ID        string         `json:"id"`
	LegacyID  string         `json:"_id"`
	UserID    string         `json:"userId"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	IsRead    *bool          `json:"isRead"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// UnmarshalJSON tolerates numeric ids and non-object metadata.
func (r *RawNotification) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        json.RawMessage `json:"id"`
		LegacyID  json.RawMessage `json:"_id"`
		UserID    json.RawMessage `json:"userId"`
		Type      string          `json:"type"`
		Title     string          `json:"title"`
		Message   string          `json:"message"`
		Metadata  json.RawMessage `json:"metadata"`
		IsRead    *bool           `json:"isRead"`
		CreatedAt string          `json:"createdAt"`
		UpdatedAt string          `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*r = RawNotification{
		ID:        scalarString(wire.ID),
		LegacyID:  scalarString(wire.LegacyID),
		UserID:    scalarString(wire.UserID),
		Type:      wire.Type,
		Title:     wire.Title,
		Message:   wire.Message,
		IsRead:    wire.IsRead,
		CreatedAt: wire.CreatedAt,
		UpdatedAt: wire.UpdatedAt,
	}
	if len(wire.Metadata) > 0 {
		var meta map[string]any
		if json.Unmarshal(wire.Metadata, &meta) == nil {
			r.Metadata = meta
		}
	}
	return nil
}

// NormalizeNotification fills every missing field of raw:
//   - id falls back to _id, then to a unique placeholder
//   - type defaults to PropertyApproved
//   - title and message fall back to each other, then to placeholder text
//   - timestamps default to now
func NormalizeNotification(raw RawNotification, now time.Time) Notification {
	n := Notification{
		ID:       strings.TrimSpace(raw.ID),
		LegacyID: strings.TrimSpace(raw.LegacyID),
		UserID:   strings.TrimSpace(raw.UserID),
		Type:     NotificationType(strings.TrimSpace(raw.Type)),
		Title:    strings.TrimSpace(raw.Title),
		Message:  strings.TrimSpace(raw.Message),
		Metadata: raw.Metadata,
	}

	if n.ID == "" {
		n.ID = n.LegacyID
	}
	if n.ID == "" {
		n.ID = "notification-" + uuid.NewString()
	}

	if n.Type == "" {
		n.Type = PropertyApproved
	}

	if n.Title == "" {
		n.Title = n.Message
	}
	if n.Message == "" {
		n.Message = n.Title
	}
	if n.Title == "" {
		n.Title = defaultNotificationTitle
		n.Message = defaultNotificationMessage
	}

	if raw.IsRead != nil {
		n.IsRead = *raw.IsRead
	}

	n.CreatedAt = parseTimestamp(raw.CreatedAt, now)
	n.UpdatedAt = parseTimestamp(raw.UpdatedAt, n.CreatedAt)
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	return n
}

// Keys returns the non-empty identifiers n answers to.
func (n Notification) Keys() []string {
	keys := make([]string, 0, 2)
	if n.ID != "" {
		keys = append(keys, n.ID)
	}
	if n.LegacyID != "" && n.LegacyID != n.ID {
		keys = append(keys, n.LegacyID)
	}
	return keys
}

// SameIdentity reports whether n and other share an identifier through
// either id field.
func (n Notification) SameIdentity(other Notification) bool {
	for _, a := range n.Keys() {
		for _, b := range other.Keys() {
			if a == b {
				return true
			}
		}
	}
	return false
}

// MetadataString returns metadata[key] when it is a non-empty string.
func (n Notification) MetadataString(key string) string {
	if n.Metadata == nil {
		return ""
	}
	s, _ := n.Metadata[key].(string)
	return strings.TrimSpace(s)
}
