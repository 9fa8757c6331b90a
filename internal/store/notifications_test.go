package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addisbroker/realtime/internal/models"
)

func newNotificationStore(api NotificationAPI) *NotificationStore {
	s := NewNotificationStore(api, zerolog.Nop())
	s.now = fixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return s
}

func ids(items []models.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestInitialize_LoadsAndNormalizes(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{
		{ID: "n1", Title: "Approved", IsRead: ptr(true)},
		{LegacyID: "n2", Message: "Rejected"},
	}}
	s := newNotificationStore(api)

	s.Initialize(context.Background(), "u1")

	items := s.Notifications()
	require.Len(t, items, 2)
	assert.Equal(t, []string{"n1", "n2"}, ids(items))
	assert.Equal(t, "Rejected", items[1].Title)
	assert.Equal(t, models.PropertyApproved, items[1].Type)
	assert.Equal(t, 1, s.UnreadCount())
	assert.False(t, s.Loading())
	assert.Empty(t, s.Err())
}

func TestInitialize_KeepsRecordsWithoutIDs(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{
		{Title: "Approved"},
		{Title: "Rejected"},
		{Title: "Updated"},
	}}
	s := newNotificationStore(api)

	s.Initialize(context.Background(), "u1")

	items := s.Notifications()
	require.Len(t, items, 3)
	titles := make([]string, 0, len(items))
	for _, n := range items {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"Approved", "Rejected", "Updated"}, titles)
	assert.Equal(t, 3, s.UnreadCount())

	require.NoError(t, s.MarkRead(context.Background(), items[1].ID))
	assert.Equal(t, 2, s.UnreadCount())
}

func TestInitialize_EmptyUserDoesNotFetch(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)

	s.Initialize(context.Background(), "")

	assert.Zero(t, api.fetches)
	assert.Empty(t, s.Notifications())
	assert.False(t, s.Ingest(models.RawNotification{ID: "n9"}))
}

func TestInitialize_FetchFailureFailsSoft(t *testing.T) {
	api := &fakeNotificationAPI{err: errors.New("boom")}
	s := newNotificationStore(api)

	s.Initialize(context.Background(), "u1")

	assert.Empty(t, s.Notifications())
	assert.Contains(t, s.Err(), "boom")
	assert.False(t, s.Loading())

	// live pushes still land after a failed fetch
	assert.True(t, s.Ingest(models.RawNotification{ID: "n1"}))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestIngest_DeduplicatesAcrossIDFields(t *testing.T) {
	cases := []struct {
		name   string
		fetch  models.RawNotification
		pushed models.RawNotification
	}{
		{"id then id", models.RawNotification{ID: "a"}, models.RawNotification{ID: "a"}},
		{"_id then id", models.RawNotification{LegacyID: "a"}, models.RawNotification{ID: "a"}},
		{"id then _id", models.RawNotification{ID: "a"}, models.RawNotification{LegacyID: "a"}},
		{"both then _id", models.RawNotification{ID: "a", LegacyID: "b"}, models.RawNotification{LegacyID: "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeNotificationAPI{items: []models.RawNotification{tc.fetch}}
			s := newNotificationStore(api)
			s.Initialize(context.Background(), "u1")

			assert.False(t, s.Ingest(tc.pushed))
			assert.Len(t, s.Notifications(), 1)
		})
	}
}

func TestIngest_PushDuringFetchIsKeptOnce(t *testing.T) {
	api := &fakeNotificationAPI{
		items:     []models.RawNotification{{ID: "old"}, {ID: "dup"}},
		fetchGate: newGate(),
	}
	s := newNotificationStore(api)

	done := make(chan struct{})
	go func() {
		s.Initialize(context.Background(), "u1")
		close(done)
	}()
	<-api.fetchGate.entered

	assert.True(t, s.Ingest(models.RawNotification{ID: "dup"}))
	assert.True(t, s.Ingest(models.RawNotification{ID: "fresh"}))
	api.fetchGate.open()
	<-done

	assert.Equal(t, []string{"fresh", "dup", "old"}, ids(s.Notifications()))
}

func TestIngest_NewestFirstAndOtherUserDropped(t *testing.T) {
	s := newNotificationStore(&fakeNotificationAPI{})
	s.Initialize(context.Background(), "u1")

	require.True(t, s.Ingest(models.RawNotification{ID: "n1"}))
	require.True(t, s.Ingest(models.RawNotification{ID: "n2", UserID: "u1"}))
	assert.False(t, s.Ingest(models.RawNotification{ID: "n3", UserID: "u2"}))

	assert.Equal(t, []string{"n2", "n1"}, ids(s.Notifications()))
}

func TestUnreadCount_FollowsList(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{
		{ID: "n1"}, {ID: "n2", IsRead: ptr(true)}, {ID: "n3"},
	}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	unread := func() int {
		n := 0
		for _, item := range s.Notifications() {
			if !item.IsRead {
				n++
			}
		}
		return n
	}

	assert.Equal(t, unread(), s.UnreadCount())
	s.Ingest(models.RawNotification{ID: "n4"})
	assert.Equal(t, unread(), s.UnreadCount())
	require.NoError(t, s.MarkRead(ctx, "n1"))
	assert.Equal(t, unread(), s.UnreadCount())
	require.NoError(t, s.Clear(ctx, "n3"))
	assert.Equal(t, unread(), s.UnreadCount())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkRead_Idempotent(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	require.NoError(t, s.MarkRead(ctx, "n1"))
	require.NoError(t, s.MarkRead(ctx, "n1"))

	assert.Equal(t, 1, api.markCalls())
	assert.Zero(t, s.UnreadCount())
}

func TestMarkRead_ConcurrentCallsHitBackendOnce(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	api.markGate = newGate()

	first := make(chan error, 1)
	go func() { first <- s.MarkRead(ctx, "n1") }()
	<-api.markGate.entered

	// second call while the first is in flight
	second := make(chan error, 1)
	go func() { second <- s.MarkRead(ctx, "n1") }()
	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"second call waits for the one in flight")
	assert.Equal(t, 1, s.UnreadCount(), "not read until the backend confirms")

	api.markGate.open()
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, 1, api.markCalls())
	assert.Zero(t, s.UnreadCount())
}

func TestMarkRead_ConcurrentCallerSharesFailure(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	api.markGate = newGate()
	api.markErr = errors.New("503")

	first := make(chan error, 1)
	go func() { first <- s.MarkRead(ctx, "n1") }()
	<-api.markGate.entered

	second := make(chan error, 1)
	go func() { second <- s.MarkRead(ctx, "n1") }()
	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	api.markGate.open()
	assert.ErrorContains(t, <-first, "503")
	assert.ErrorContains(t, <-second, "503")
	assert.Equal(t, 1, api.markCalls())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkRead_FailureLeavesUnread(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}, markErr: errors.New("503")}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	err := s.MarkRead(ctx, "n1")
	require.Error(t, err)
	assert.Equal(t, 1, s.UnreadCount())

	// a later attempt is not blocked by the failed one
	api.markErr = nil
	require.NoError(t, s.MarkRead(ctx, "n1"))
	assert.Zero(t, s.UnreadCount())
}

func TestMarkRead_ByLegacyID(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1", LegacyID: "mongo1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	require.NoError(t, s.MarkRead(ctx, "mongo1"))
	assert.Equal(t, []string{"n1"}, api.marked)
	assert.ErrorIs(t, s.MarkRead(ctx, "missing"), ErrNotFound)
}

func TestMarkAllRead_LeavesMidCallPushesUnread(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}, {ID: "n2"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	api.markGate = newGate()

	done := make(chan error, 1)
	go func() { done <- s.MarkAllRead(ctx) }()
	<-api.markGate.entered
	s.Ingest(models.RawNotification{ID: "n3"})
	api.markGate.open()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"u1"}, api.markedAll)
	assert.Equal(t, 1, s.UnreadCount())
	assert.False(t, s.Notifications()[0].IsRead)
}

func TestMarkAllRead_NothingUnreadSkipsBackend(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1", IsRead: ptr(true)}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	require.NoError(t, s.MarkAllRead(ctx))
	assert.Empty(t, api.markedAll)
}

func TestClearAll_KeepsMidCallPushes(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}, {ID: "n2"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	api.clearGate = newGate()

	done := make(chan error, 1)
	go func() { done <- s.ClearAll(ctx) }()
	<-api.clearGate.entered
	s.Ingest(models.RawNotification{ID: "n3"})
	api.clearGate.open()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"n3"}, ids(s.Notifications()))
}

func TestClear_RemovesOne(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}, {ID: "n2"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")

	require.NoError(t, s.Clear(ctx, "n1"))
	assert.Equal(t, []string{"n2"}, ids(s.Notifications()))
	assert.ErrorIs(t, s.Clear(ctx, "n1"), ErrNotFound)
}

func TestReset_DuringFetchLeavesStoreEmpty(t *testing.T) {
	api := &fakeNotificationAPI{
		items:     []models.RawNotification{{ID: "n1"}},
		fetchGate: newGate(),
	}
	s := newNotificationStore(api)

	done := make(chan struct{})
	go func() {
		s.Initialize(context.Background(), "u1")
		close(done)
	}()
	<-api.fetchGate.entered
	s.Reset()
	api.fetchGate.open()
	<-done

	assert.Empty(t, s.Notifications())
	assert.Zero(t, s.UnreadCount())
	assert.Empty(t, s.UserID())
}

func TestReset_DuringMarkReadIgnoresResult(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	api.markGate = newGate()

	done := make(chan error, 1)
	go func() { done <- s.MarkRead(ctx, "n1") }()
	<-api.markGate.entered
	s.Reset()
	api.markGate.open()
	require.NoError(t, <-done)

	assert.Empty(t, s.Notifications())
}

func TestResync_MergesWithoutDropping(t *testing.T) {
	api := &fakeNotificationAPI{items: []models.RawNotification{{ID: "n1"}}}
	s := newNotificationStore(api)
	ctx := context.Background()
	s.Initialize(ctx, "u1")
	s.Ingest(models.RawNotification{ID: "live"})

	api.mu.Lock()
	api.items = []models.RawNotification{{ID: "n1", IsRead: ptr(true)}, {ID: "n2"}}
	api.mu.Unlock()

	require.NoError(t, s.Resync(ctx))
	items := s.Notifications()
	assert.Equal(t, []string{"live", "n1", "n2"}, ids(items))
	assert.True(t, items[1].IsRead)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestResync_RequiresUser(t *testing.T) {
	s := newNotificationStore(&fakeNotificationAPI{})
	assert.ErrorIs(t, s.Resync(context.Background()), ErrNotAuthenticated)
}

func TestChanges_Coalesce(t *testing.T) {
	s := newNotificationStore(&fakeNotificationAPI{})
	s.Initialize(context.Background(), "u1")
	s.Ingest(models.RawNotification{ID: "n1"})
	s.Ingest(models.RawNotification{ID: "n2"})

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-s.Changes():
		t.Fatal("changes should coalesce")
	default:
	}
}
