package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func decodeNotification(t *testing.T, data string) Notification {
	t.Helper()
	var raw RawNotification
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	return NormalizeNotification(raw, now)
}

func TestNormalizeNotification_Defaults(t *testing.T) {
	n := decodeNotification(t, `{}`)

	assert.True(t, strings.HasPrefix(n.ID, "notification-"), n.ID)
	assert.NotEqual(t, n.ID, decodeNotification(t, `{}`).ID)
	assert.Equal(t, PropertyApproved, n.Type)
	assert.Equal(t, "Notification", n.Title)
	assert.Equal(t, "You have a new notification", n.Message)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, now, n.UpdatedAt)
	assert.NotNil(t, n.Metadata)
	assert.False(t, n.IsRead)
}

func TestNormalizeNotification_Fallbacks(t *testing.T) {
	n := decodeNotification(t, `{"_id": 42, "message": "Your listing was approved", "isRead": true,
		"createdAt": "2024-04-30T08:15:00.000Z", "type": "propertyRejected", "metadata": {"propertyId": "p1"}}`)

	assert.Equal(t, "42", n.ID)
	assert.Equal(t, "42", n.LegacyID)
	assert.Equal(t, "Your listing was approved", n.Title)
	assert.Equal(t, PropertyRejected, n.Type)
	assert.True(t, n.IsRead)
	assert.Equal(t, time.Date(2024, 4, 30, 8, 15, 0, 0, time.UTC), n.CreatedAt.UTC())
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.Equal(t, "p1", n.MetadataString("propertyId"))
}

func TestNormalizeNotification_TitleOnly(t *testing.T) {
	n := decodeNotification(t, `{"id": "n1", "title": "Password reset", "metadata": "junk"}`)

	assert.Equal(t, "Password reset", n.Message)
	assert.Empty(t, n.Metadata)
}

func TestNotification_SameIdentity(t *testing.T) {
	a := Notification{ID: "1", LegacyID: "x"}

	assert.True(t, a.SameIdentity(Notification{ID: "x"}))
	assert.True(t, a.SameIdentity(Notification{LegacyID: "1"}))
	assert.False(t, a.SameIdentity(Notification{ID: "2"}))
	assert.False(t, Notification{}.SameIdentity(Notification{}))
}

func TestNormalizeMessage_Shapes(t *testing.T) {
	var raw RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"_id": "m1",
		"content": {"text": "hello"},
		"sender": {"_id": "a", "name": "Abebe"},
		"recipient": "b",
		"createdAt": "2024-04-30 10:00:00"
	}`), &raw))

	m := NormalizeMessage(raw, now)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, Participant{ID: "a", Name: "Abebe"}, m.Sender)
	assert.Equal(t, Participant{ID: "b"}, m.Recipient)
	assert.True(t, m.IsActive)
	assert.Equal(t, StatusConfirmed, m.Status)
	assert.Equal(t, time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), m.CreatedAt)

	cp, ok := m.Counterpart("b")
	assert.True(t, ok)
	assert.Equal(t, "a", cp.ID)
	_, ok = m.Counterpart("z")
	assert.False(t, ok)
}

func TestNormalizeMessage_Defaults(t *testing.T) {
	m := NormalizeMessage(RawMessage{IsActive: new(bool)}, now)

	assert.True(t, strings.HasPrefix(m.ID, "message-"), m.ID)
	assert.NotEqual(t, m.ID, NormalizeMessage(RawMessage{}, now).ID)
	assert.False(t, m.IsActive)
	assert.Equal(t, now, m.CreatedAt)
	assert.False(t, IsTemporaryID(m.ID))
	assert.True(t, IsTemporaryID(TempIDPrefix+"abc"))
}
