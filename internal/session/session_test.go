package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addisbroker/realtime/internal/live"
	"github.com/addisbroker/realtime/internal/live/livetest"
	"github.com/addisbroker/realtime/internal/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	items    []models.RawNotification
	fetches  int
	readMark []string
}

func (f *fakeAPI) GetNotifications(ctx context.Context, userID string) ([]models.RawNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return append([]models.RawNotification(nil), f.items...), nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) error { return nil }

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context, userID string) error { return nil }

func (f *fakeAPI) DeleteNotification(ctx context.Context, id string) error { return nil }

func (f *fakeAPI) ClearNotifications(ctx context.Context, userID string) error { return nil }

func (f *fakeAPI) GetConversation(ctx context.Context, counterpartID string) ([]models.RawMessage, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, recipientID, content string) (models.RawMessage, error) {
	return models.RawMessage{}, nil
}

func (f *fakeAPI) MarkConversationRead(ctx context.Context, counterpartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMark = append(f.readMark, counterpartID)
	return nil
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

var (
	me  = models.Participant{ID: "u1", Name: "Me"}
	bob = models.Participant{ID: "b", Name: "Bob"}
)

func TestStart_RequiresUser(t *testing.T) {
	_, err := Start(context.Background(), Deps{API: &fakeAPI{}})
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestStart_RoutesPushesToStores(t *testing.T) {
	srv := livetest.NewServer()
	defer srv.Close()

	api := &fakeAPI{items: []models.RawNotification{{ID: "n1"}}}
	s, err := Start(context.Background(), Deps{
		API:            api,
		User:           me,
		SocketURL:      srv.WSURL(),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Notifications.Notifications(), 1)
	require.True(t, srv.WaitForJoin("u1", 2*time.Second))
	require.NoError(t, s.Messages.OpenConversation(context.Background(), bob))

	srv.Push("u1", map[string]any{"type": "notification", "data": map[string]any{"id": "n2", "title": "Approved"}})
	srv.Push("u1", map[string]any{"id": "m1", "content": "hi", "sender": bob, "recipient": me})

	assert.Eventually(t, func() bool { return s.Notifications.UnreadCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(s.Messages.Messages("b")) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, live.StatusConnected, s.LiveStatus())
}

func TestClose_ResetsStoresAndDisconnects(t *testing.T) {
	srv := livetest.NewServer()
	defer srv.Close()

	api := &fakeAPI{items: []models.RawNotification{{ID: "n1"}}}
	s, err := Start(context.Background(), Deps{
		API:       api,
		User:      me,
		SocketURL: srv.WSURL(),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	require.True(t, srv.WaitForJoin("u1", 2*time.Second))

	s.Close()
	s.Close()

	assert.Empty(t, s.Notifications.Notifications())
	assert.Empty(t, s.Messages.Self().ID)
	assert.Equal(t, live.StatusClosed, s.LiveStatus())
	assert.Error(t, s.Context().Err())
	assert.Eventually(t, func() bool { return srv.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestResyncJob_RunsWhileDisconnected(t *testing.T) {
	api := &fakeAPI{}
	s, err := Start(context.Background(), Deps{
		API:            api,
		User:           me,
		ResyncInterval: 20 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer s.Close()

	api.mu.Lock()
	api.items = []models.RawNotification{{ID: "late"}}
	api.mu.Unlock()

	assert.Eventually(t, func() bool {
		return api.fetchCount() >= 2 && len(s.Notifications.Notifications()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResyncJob_IdleWhileConnected(t *testing.T) {
	srv := livetest.NewServer()
	defer srv.Close()

	api := &fakeAPI{}
	s, err := Start(context.Background(), Deps{
		API:            api,
		User:           me,
		SocketURL:      srv.WSURL(),
		ResyncInterval: 20 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer s.Close()
	require.True(t, srv.WaitForJoin("u1", 2*time.Second))
	require.Eventually(t, func() bool { return s.LiveStatus() == live.StatusConnected }, time.Second, 5*time.Millisecond)

	before := api.fetchCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, api.fetchCount())
}

func TestReconnect_TriggersResync(t *testing.T) {
	srv := livetest.NewServer()
	defer srv.Close()

	api := &fakeAPI{}
	s, err := Start(context.Background(), Deps{
		API:            api,
		User:           me,
		SocketURL:      srv.WSURL(),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer s.Close()
	require.True(t, srv.WaitForJoin("u1", 2*time.Second))
	assert.Equal(t, 1, api.fetchCount())

	api.mu.Lock()
	api.items = []models.RawNotification{{ID: "missed"}}
	api.mu.Unlock()
	srv.DropConnections()

	require.True(t, srv.WaitForJoin("u1", 2*time.Second))
	assert.Eventually(t, func() bool { return len(s.Notifications.Notifications()) == 1 }, 2*time.Second, 10*time.Millisecond)
}
