package store

import (
	"context"
	"sync"
	"time"

	"github.com/addisbroker/realtime/internal/models"
)

func ptr[T any](v T) *T { return &v }

// gate blocks a fake call until released, so tests can act while the call
// is in flight.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait() {
	if g == nil {
		return
	}
	g.entered <- struct{}{}
	<-g.release
}

func (g *gate) open() { close(g.release) }

type fakeNotificationAPI struct {
	mu    sync.Mutex
	items []models.RawNotification
	err   error

	fetchGate *gate
	markGate  *gate
	clearGate *gate

	fetches   int
	marked    []string
	markedAll []string
	deleted   []string
	cleared   []string
	markErr   error
}

func (f *fakeNotificationAPI) GetNotifications(ctx context.Context, userID string) ([]models.RawNotification, error) {
	f.mu.Lock()
	f.fetches++
	g, items, err := f.fetchGate, append([]models.RawNotification(nil), f.items...), f.err
	f.mu.Unlock()
	g.wait()
	return items, err
}

func (f *fakeNotificationAPI) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	f.marked = append(f.marked, id)
	g := f.markGate
	f.mu.Unlock()
	g.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markErr
}

func (f *fakeNotificationAPI) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	f.markedAll = append(f.markedAll, userID)
	g, err := f.markGate, f.markErr
	f.mu.Unlock()
	g.wait()
	return err
}

func (f *fakeNotificationAPI) DeleteNotification(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	g := f.clearGate
	f.mu.Unlock()
	g.wait()
	return nil
}

func (f *fakeNotificationAPI) ClearNotifications(ctx context.Context, userID string) error {
	f.mu.Lock()
	f.cleared = append(f.cleared, userID)
	g := f.clearGate
	f.mu.Unlock()
	g.wait()
	return nil
}

func (f *fakeNotificationAPI) markCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marked)
}

type fakeMessageAPI struct {
	mu           sync.Mutex
	conversation []models.RawMessage
	fetchErr     error
	sendErr      error
	sendReply    func(recipientID, content string) models.RawMessage
	sendGate     *gate

	sent     []string
	readMark []string
}

func (f *fakeMessageAPI) GetConversation(ctx context.Context, counterpartID string) ([]models.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RawMessage(nil), f.conversation...), f.fetchErr
}

func (f *fakeMessageAPI) SendMessage(ctx context.Context, recipientID, content string) (models.RawMessage, error) {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	g := f.sendGate
	f.mu.Unlock()
	g.wait()

	// read the outcome after the gate so tests can set it while the call waits
	f.mu.Lock()
	err, reply := f.sendErr, f.sendReply
	f.mu.Unlock()
	if err != nil {
		return models.RawMessage{}, err
	}
	if reply != nil {
		return reply(recipientID, content), nil
	}
	return models.RawMessage{}, nil
}

func (f *fakeMessageAPI) MarkConversationRead(ctx context.Context, counterpartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMark = append(f.readMark, counterpartID)
	return nil
}

func (f *fakeMessageAPI) readMarks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readMark...)
}

func fixedClock(t time.Time) clock { return func() time.Time { return t } }
