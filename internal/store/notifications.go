package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/addisbroker/realtime/internal/logging"
	"github.com/addisbroker/realtime/internal/models"
)

// NotificationAPI is the backend the notification store confirms against.
type NotificationAPI interface {
	GetNotifications(ctx context.Context, userID string) ([]models.RawNotification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context, userID string) error
}

// NotificationStore is the source of truth for the current user's
// notifications. Items are kept newest first.
type NotificationStore struct {
	api NotificationAPI
	log zerolog.Logger
	now clock

	mu      sync.RWMutex
	userID  string
	gen     uint64
	items   []models.Notification
	loading bool
	err     string

	// marks shares one backend call among concurrent MarkRead callers.
	marks singleflight.Group

	changes signal
}

func NewNotificationStore(api NotificationAPI, log zerolog.Logger) *NotificationStore {
	return &NotificationStore{
		api:     api,
		log:     logging.Component(log, "notifications"),
		now:     time.Now,
		changes: newSignal(),
	}
}

// Changes fires after any change to the visible state.
func (s *NotificationStore) Changes() <-chan struct{} { return s.changes }

// Initialize loads the notifications of userID. An empty userID clears the
// store without fetching. Fetch errors leave the list empty and are exposed
// through Err; the result of a fetch is dropped if the store was reset or
// re-initialized meanwhile.
func (s *NotificationStore) Initialize(ctx context.Context, userID string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.userID = userID
	s.items = nil
	s.err = ""
	s.loading = userID != ""
	s.mu.Unlock()
	s.changes.notify()

	if userID == "" {
		return
	}

	raw, err := s.api.GetNotifications(ctx, userID)

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.Debug().Str(logging.USER, userID).Msg("discarding stale notification fetch")
		return
	}
	s.loading = false
	if err != nil {
		s.err = fmt.Sprintf("could not load notifications: %v", err)
		s.log.Warn().Err(err).Str(logging.USER, userID).Msg("notification fetch failed")
		return
	}
	// Pushes that arrived during the fetch stay at the head.
	s.appendUnknownLocked(raw)
}

// Resync merges a fresh fetch into the list: unknown records are appended
// and records the backend reports read become read locally. Nothing is
// removed.
func (s *NotificationStore) Resync(ctx context.Context) error {
	s.mu.RLock()
	userID, gen := s.userID, s.gen
	s.mu.RUnlock()
	if userID == "" {
		return ErrNotAuthenticated
	}

	raw, err := s.api.GetNotifications(ctx, userID)
	if err != nil {
		return fmt.Errorf("resync notifications: %w", err)
	}

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	now := s.now()
	for _, r := range raw {
		n := models.NormalizeNotification(r, now)
		if i := s.indexLocked(n); i >= 0 {
			if n.IsRead {
				s.items[i].IsRead = true
			}
			continue
		}
		s.items = append(s.items, n)
	}
	s.err = ""
	return nil
}

// Ingest adds a pushed notification at the head of the list unless a record
// with the same id or _id is already present. It reports whether the record
// was added.
func (s *NotificationStore) Ingest(raw models.RawNotification) bool {
	n := models.NormalizeNotification(raw, s.now())

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return false
	}
	if n.UserID != "" && n.UserID != s.userID {
		s.mu.Unlock()
		s.log.Debug().Str(logging.ID, n.ID).Msg("dropping notification for another user")
		return false
	}
	if s.indexLocked(n) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append([]models.Notification{n}, s.items...)
	s.mu.Unlock()

	s.changes.notify()
	return true
}

// MarkRead marks id read once the backend confirms. Marking a read
// notification is a no-op; a caller arriving while a mark of the same
// notification is in flight waits for it and gets its result.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	s.mu.RLock()
	i := s.indexByIDLocked(id)
	if i < 0 {
		s.mu.RUnlock()
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	n := s.items[i]
	gen := s.gen
	s.mu.RUnlock()
	if n.IsRead {
		return nil
	}

	key := fmt.Sprintf("%d/%s", gen, n.ID)
	_, err, _ := s.marks.Do(key, func() (any, error) {
		return nil, s.markRead(ctx, n.ID, gen)
	})
	return err
}

func (s *NotificationStore) markRead(ctx context.Context, id string, gen uint64) error {
	err := s.api.MarkNotificationRead(ctx, id)

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if j := s.indexByIDLocked(id); j >= 0 {
		s.items[j].IsRead = true
	}
	return nil
}

// MarkAllRead marks every currently unread notification read once the
// backend confirms. Notifications pushed while the call is in flight stay
// unread.
func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	var ids []string
	for _, n := range s.items {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	userID, gen := s.userID, s.gen
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	if err := s.api.MarkAllNotificationsRead(ctx, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	for _, id := range ids {
		if j := s.indexByIDLocked(id); j >= 0 {
			s.items[j].IsRead = true
		}
	}
	return nil
}

// Clear removes id after the backend confirms the delete.
func (s *NotificationStore) Clear(ctx context.Context, id string) error {
	s.mu.RLock()
	i := s.indexByIDLocked(id)
	var n models.Notification
	if i >= 0 {
		n = s.items[i]
	}
	gen := s.gen
	s.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	if err := s.api.DeleteNotification(ctx, n.ID); err != nil {
		return fmt.Errorf("clear notification %s: %w", n.ID, err)
	}

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.removeLocked(map[string]bool{n.ID: true})
	return nil
}

// ClearAll removes every notification present when the call started, after
// the backend confirms.
func (s *NotificationStore) ClearAll(ctx context.Context) error {
	s.mu.RLock()
	userID, gen := s.userID, s.gen
	ids := make(map[string]bool, len(s.items))
	for _, n := range s.items {
		ids[n.ID] = true
	}
	s.mu.RUnlock()
	if userID == "" {
		return ErrNotAuthenticated
	}

	if err := s.api.ClearNotifications(ctx, userID); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.removeLocked(ids)
	return nil
}

// Reset drops all state immediately. Any fetch or mutation still in flight
// is ignored when it completes.
func (s *NotificationStore) Reset() {
	s.mu.Lock()
	s.gen++
	s.userID = ""
	s.items = nil
	s.err = ""
	s.loading = false
	s.mu.Unlock()
	s.changes.notify()
}

// Notifications returns a copy of the list, newest first.
func (s *NotificationStore) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.items...)
}

// UnreadCount is derived from the list on every call.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (s *NotificationStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *NotificationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *NotificationStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *NotificationStore) appendUnknownLocked(raw []models.RawNotification) {
	now := s.now()
	for _, r := range raw {
		n := models.NormalizeNotification(r, now)
		if s.indexLocked(n) >= 0 {
			continue
		}
		s.items = append(s.items, n)
	}
}

// indexLocked finds an entry sharing n's identity through id or _id.
func (s *NotificationStore) indexLocked(n models.Notification) int {
	for i, existing := range s.items {
		if existing.SameIdentity(n) {
			return i
		}
	}
	return -1
}

func (s *NotificationStore) indexByIDLocked(id string) int {
	for i, existing := range s.items {
		if existing.ID == id || (existing.LegacyID != "" && existing.LegacyID == id) {
			return i
		}
	}
	return -1
}

func (s *NotificationStore) removeLocked(ids map[string]bool) {
	kept := s.items[:0]
	for _, n := range s.items {
		if !ids[n.ID] {
			kept = append(kept, n)
		}
	}
	clear(s.items[len(kept):])
	s.items = kept
}
