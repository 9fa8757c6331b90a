package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/addisbroker/realtime/internal/logging"
	"github.com/addisbroker/realtime/internal/models"
)

// MessageAPI is the backend the message store confirms against.
type MessageAPI interface {
	GetConversation(ctx context.Context, counterpartID string) ([]models.RawMessage, error)
	SendMessage(ctx context.Context, recipientID, content string) (models.RawMessage, error)
	MarkConversationRead(ctx context.Context, counterpartID string) error
}

// DefaultReconcileWindow bounds how far apart the optimistic and the
// confirmed timestamps of the same message may be.
const DefaultReconcileWindow = 2 * time.Minute

type conversation struct {
	counterpart models.Participant
	messages    []models.Message // ascending CreatedAt
	open        bool
	loading     bool
	err         string
	// readLatched is set once the open conversation has been marked read and
	// cleared when it is closed.
	readLatched bool
}

// MessageStore tracks the conversations of the current user.
type MessageStore struct {
	api             MessageAPI
	log             zerolog.Logger
	now             clock
	ReconcileWindow time.Duration

	mu            sync.RWMutex
	self          models.Participant
	gen           uint64
	conversations map[string]*conversation
	// unread holds, per counterpart, the ids of messages pushed while their
	// conversation was not open.
	unread map[string]map[string]bool
	// reconciled maps the temp id of an in-flight send to the id of the
	// pushed message that replaced it.
	reconciled map[string]string

	changes signal
}

func NewMessageStore(api MessageAPI, log zerolog.Logger) *MessageStore {
	return &MessageStore{
		api:             api,
		log:             logging.Component(log, "messages"),
		now:             time.Now,
		ReconcileWindow: DefaultReconcileWindow,
		conversations:   make(map[string]*conversation),
		unread:          make(map[string]map[string]bool),
		reconciled:      make(map[string]string),
		changes:         newSignal(),
	}
}

func (s *MessageStore) Changes() <-chan struct{} { return s.changes }

// SetUser binds the store to the authenticated user, dropping any state of
// a previous user.
func (s *MessageStore) SetUser(self models.Participant) {
	s.mu.Lock()
	s.gen++
	s.self = self
	s.conversations = make(map[string]*conversation)
	s.unread = make(map[string]map[string]bool)
	s.reconciled = make(map[string]string)
	s.mu.Unlock()
	s.changes.notify()
}

// Reset drops all conversations. Results still in flight are ignored.
func (s *MessageStore) Reset() { s.SetUser(models.Participant{}) }

// OpenConversation makes counterpartID the open conversation, loads its
// history and marks it read once per open. A conversation without messages
// is not marked read.
func (s *MessageStore) OpenConversation(ctx context.Context, counterpart models.Participant) error {
	if counterpart.ID == "" {
		return fmt.Errorf("conversation: %w", ErrNotFound)
	}

	s.mu.Lock()
	if s.self.ID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	conv := s.conversationLocked(counterpart)
	if !conv.open {
		conv.open = true
		conv.readLatched = false
	}
	conv.loading = true
	delete(s.unread, counterpart.ID)
	gen := s.gen
	s.mu.Unlock()
	s.changes.notify()

	raw, err := s.api.GetConversation(ctx, counterpart.ID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	conv.loading = false
	if err != nil {
		conv.err = fmt.Sprintf("could not load conversation: %v", err)
		s.mu.Unlock()
		s.changes.notify()
		return fmt.Errorf("load conversation %s: %w", counterpart.ID, err)
	}
	conv.err = ""
	now := s.now()
	fetched := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		fetched = append(fetched, models.NormalizeMessage(r, now))
	}
	sort.SliceStable(fetched, func(i, j int) bool { return fetched[i].CreatedAt.Before(fetched[j].CreatedAt) })
	for _, m := range fetched {
		s.mergeLocked(conv, m)
	}

	markRead := conv.open && !conv.readLatched && len(conv.messages) > 0
	if markRead {
		conv.readLatched = true
	}
	s.mu.Unlock()
	s.changes.notify()

	if markRead {
		return s.markConversationRead(ctx, counterpart.ID, gen)
	}
	return nil
}

// CloseConversation ends the current open of counterpartID; the next open
// marks it read again.
func (s *MessageStore) CloseConversation(counterpartID string) {
	s.mu.Lock()
	if conv, ok := s.conversations[counterpartID]; ok {
		conv.open = false
		conv.readLatched = false
	}
	s.mu.Unlock()
	s.changes.notify()
}

func (s *MessageStore) markConversationRead(ctx context.Context, counterpartID string, gen uint64) error {
	if err := s.api.MarkConversationRead(ctx, counterpartID); err != nil {
		s.log.Warn().Err(err).Str(logging.ID, counterpartID).Msg("mark conversation read failed")
		return fmt.Errorf("mark conversation %s read: %w", counterpartID, err)
	}

	s.mu.Lock()
	if s.gen == gen {
		if conv, ok := s.conversations[counterpartID]; ok {
			for i := range conv.messages {
				if conv.messages[i].Sender.ID == counterpartID {
					conv.messages[i].IsRead = true
				}
			}
		}
	}
	s.mu.Unlock()
	s.changes.notify()
	return nil
}

// Send shows text in the conversation immediately as a pending message and
// then asks the backend to persist it. On failure the message stays visible
// as failed and the error is returned.
func (s *MessageStore) Send(ctx context.Context, counterpart models.Participant, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.self.ID == "" {
		s.mu.Unlock()
		return models.Message{}, ErrNotAuthenticated
	}
	conv := s.conversationLocked(counterpart)
	now := s.now()
	if n := len(conv.messages); n > 0 && now.Before(conv.messages[n-1].CreatedAt) {
		// keep the optimistic message last despite clock skew
		now = conv.messages[n-1].CreatedAt
	}
	pending := models.Message{
		ID:        models.TempIDPrefix + uuid.NewString(),
		Content:   text,
		Sender:    s.self,
		Recipient: conv.counterpart,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    models.StatusPending,
	}
	conv.messages = append(conv.messages, pending)
	gen := s.gen
	s.mu.Unlock()
	s.changes.notify()

	return s.deliver(ctx, counterpart.ID, pending, gen)
}

// Retry resends a failed optimistic message.
func (s *MessageStore) Retry(ctx context.Context, counterpartID, tempID string) (models.Message, error) {
	s.mu.Lock()
	conv, ok := s.conversations[counterpartID]
	i := -1
	if ok {
		i = indexOfID(conv.messages, tempID)
	}
	if i < 0 || !conv.messages[i].Failed() {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("failed message %s: %w", tempID, ErrNotFound)
	}
	conv.messages[i].Status = models.StatusPending
	pending := conv.messages[i]
	gen := s.gen
	s.mu.Unlock()
	s.changes.notify()

	return s.deliver(ctx, counterpartID, pending, gen)
}

// Discard removes a failed optimistic message.
func (s *MessageStore) Discard(counterpartID, tempID string) error {
	s.mu.Lock()
	conv, ok := s.conversations[counterpartID]
	i := -1
	if ok {
		i = indexOfID(conv.messages, tempID)
	}
	if i < 0 || !conv.messages[i].Failed() {
		s.mu.Unlock()
		return fmt.Errorf("failed message %s: %w", tempID, ErrNotFound)
	}
	conv.messages = append(conv.messages[:i], conv.messages[i+1:]...)
	s.mu.Unlock()
	s.changes.notify()
	return nil
}

func (s *MessageStore) deliver(ctx context.Context, counterpartID string, pending models.Message, gen uint64) (models.Message, error) {
	raw, err := s.api.SendMessage(ctx, counterpartID, pending.Content)

	s.mu.Lock()
	defer s.changes.notify()
	defer s.mu.Unlock()
	if s.gen != gen {
		return pending, err
	}
	conv := s.conversations[counterpartID]
	if conv == nil {
		return pending, err
	}
	i := indexOfID(conv.messages, pending.ID)
	replacedBy, reconciled := s.reconciled[pending.ID]
	delete(s.reconciled, pending.ID)

	if err != nil {
		if i >= 0 {
			conv.messages[i].Status = models.StatusFailed
			pending = conv.messages[i]
		}
		return pending, fmt.Errorf("send message: %w", err)
	}

	confirmed := models.NormalizeMessage(raw, s.now())
	if confirmed.Content == "" {
		confirmed.Content = pending.Content
	}
	if confirmed.Sender.ID == "" {
		confirmed.Sender = pending.Sender
	}
	if confirmed.Recipient.ID == "" {
		confirmed.Recipient = pending.Recipient
	}

	if i < 0 {
		// already reconciled by a push; report what the conversation holds
		if !reconciled {
			replacedBy = confirmed.ID
		}
		if j := indexOfID(conv.messages, replacedBy); j >= 0 {
			return conv.messages[j], nil
		}
		return confirmed, nil
	}
	if strings.TrimSpace(raw.ID) == "" && strings.TrimSpace(raw.LegacyID) == "" {
		// without a server id the record keeps its temp id, so the echo
		// can still reconcile it
		confirmed.ID = pending.ID
	} else if j := indexOfID(conv.messages, confirmed.ID); j >= 0 {
		// the push won the race; drop the optimistic copy
		conv.messages = append(conv.messages[:i], conv.messages[i+1:]...)
		return conv.messages[indexOfID(conv.messages, confirmed.ID)], nil
	}
	confirmed.CreatedAt = pending.CreatedAt
	conv.messages[i] = confirmed
	return confirmed, nil
}

// Ingest merges a pushed message. Messages for the open conversation are
// merged into it; others only bump the unread count of their sender. It
// reports whether a new message became visible.
func (s *MessageStore) Ingest(raw models.RawMessage) bool {
	m := models.NormalizeMessage(raw, s.now())

	s.mu.Lock()
	if s.self.ID == "" {
		s.mu.Unlock()
		return false
	}
	counterpart, ok := m.Counterpart(s.self.ID)
	if !ok {
		s.mu.Unlock()
		s.log.Debug().Str(logging.ID, m.ID).Msg("dropping message for another conversation")
		return false
	}

	conv, tracked := s.conversations[counterpart.ID]
	if !tracked || !conv.open {
		if m.Sender.ID == counterpart.ID {
			ids := s.unread[counterpart.ID]
			if ids == nil {
				ids = make(map[string]bool)
				s.unread[counterpart.ID] = ids
			}
			if m.IsRead {
				delete(ids, m.ID)
			} else {
				ids[m.ID] = true
			}
			if len(ids) == 0 {
				delete(s.unread, counterpart.ID)
			}
		}
		s.mu.Unlock()
		s.changes.notify()
		return false
	}
	added := s.mergeLocked(conv, m)
	s.mu.Unlock()

	s.changes.notify()
	return added
}

// Messages returns the conversation with counterpartID, oldest first.
func (s *MessageStore) Messages(counterpartID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[counterpartID]
	if !ok {
		return nil
	}
	return append([]models.Message(nil), conv.messages...)
}

// ConversationState reports whether the conversation is loading and its last
// load error.
func (s *MessageStore) ConversationState(counterpartID string) (loading bool, errText string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[counterpartID]; ok {
		return conv.loading, conv.err
	}
	return false, ""
}

// UnreadCounts returns, per counterpart, the number of distinct messages
// pushed while their conversation was not open.
func (s *MessageStore) UnreadCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.unread))
	for k, ids := range s.unread {
		out[k] = len(ids)
	}
	return out
}

func (s *MessageStore) Self() models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

func (s *MessageStore) conversationLocked(counterpart models.Participant) *conversation {
	conv, ok := s.conversations[counterpart.ID]
	if !ok {
		conv = &conversation{counterpart: counterpart}
		s.conversations[counterpart.ID] = conv
	} else if counterpart.Name != "" {
		conv.counterpart = counterpart
	}
	return conv
}

// mergeLocked applies one confirmed message to conv:
//   - a known id updates the record in place
//   - a matching pending message of ours is replaced in place
//   - anything else is inserted by CreatedAt, after equal timestamps
//
// It reports whether the conversation grew.
func (s *MessageStore) mergeLocked(conv *conversation, m models.Message) bool {
	if i := indexOfID(conv.messages, m.ID); i >= 0 {
		existing := conv.messages[i]
		m.CreatedAt = existing.CreatedAt
		m.IsRead = m.IsRead || existing.IsRead
		conv.messages[i] = m
		return false
	}
	if i := s.pendingMatchLocked(conv, m); i >= 0 {
		// keep the slot, and the timestamp, the user already sees
		if conv.messages[i].Pending() {
			s.reconciled[conv.messages[i].ID] = m.ID
		}
		m.CreatedAt = conv.messages[i].CreatedAt
		conv.messages[i] = m
		return false
	}

	at := sort.Search(len(conv.messages), func(i int) bool {
		return conv.messages[i].CreatedAt.After(m.CreatedAt)
	})
	conv.messages = append(conv.messages, models.Message{})
	copy(conv.messages[at+1:], conv.messages[at:])
	conv.messages[at] = m
	return true
}

// pendingMatchLocked finds the oldest message of ours still under a temp id,
// pending or confirmed by a response without an id, with the same recipient
// and content as m and created within ReconcileWindow of it.
func (s *MessageStore) pendingMatchLocked(conv *conversation, m models.Message) int {
	if m.Sender.ID != s.self.ID {
		return -1
	}
	for i, p := range conv.messages {
		if !models.IsTemporaryID(p.ID) || p.Failed() {
			continue
		}
		if p.Recipient.ID != m.Recipient.ID || p.Content != m.Content {
			continue
		}
		if d := m.CreatedAt.Sub(p.CreatedAt).Abs(); d <= s.ReconcileWindow {
			return i
		}
	}
	return -1
}

func indexOfID(messages []models.Message, id string) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
