// Package session wires the live channel, the stores and the background
// resync job for one authenticated user.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/addisbroker/realtime/internal/live"
	"github.com/addisbroker/realtime/internal/logging"
	"github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/store"
)

var ErrNoUser = errors.New("session: user id is required")

// API is the REST backend a session talks to.
type API interface {
	store.NotificationAPI
	store.MessageAPI
}

type Deps struct {
	API  API
	User models.Participant

	// SocketURL of the live backend; empty disables live updates.
	SocketURL string
	Token     func() string
	Dialer    *websocket.Dialer

	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration

	// ResyncInterval is how often notifications are refetched while the
	// live channel is not connected. Zero disables the job.
	ResyncInterval time.Duration
	RequestTimeout time.Duration

	// OnStatus observes live channel status changes. Optional.
	OnStatus func(live.Status)

	Logger zerolog.Logger
}

// Session replaces a process-wide store: everything one logged-in user sees
// hangs off it and is torn down by Close.
type Session struct {
	Notifications *store.NotificationStore
	Messages      *store.MessageStore

	user      models.Participant
	channel   *live.Channel
	scheduler *gocron.Scheduler
	timeout   time.Duration
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	dropped   bool // channel lost its connection since the last resync
}

// Start builds the session for deps.User, opens the live channel and loads
// the initial notifications. Fetch failures do not fail Start; they surface
// through Notifications.Err.
func Start(ctx context.Context, deps Deps) (*Session, error) {
	if deps.User.ID == "" {
		return nil, ErrNoUser
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 15 * time.Second
	}

	s := &Session{
		Notifications: store.NewNotificationStore(deps.API, deps.Logger),
		Messages:      store.NewMessageStore(deps.API, deps.Logger),
		user:          deps.User,
		timeout:       deps.RequestTimeout,
		log:           logging.Component(deps.Logger, "session").With().Str(logging.USER, deps.User.ID).Logger(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.Messages.SetUser(deps.User)

	s.channel = live.Open(live.Config{
		ServerURL:         deps.SocketURL,
		UserID:            deps.User.ID,
		Token:             deps.Token,
		Dialer:            deps.Dialer,
		ReconnectDelay:    deps.ReconnectDelay,
		ReconnectDelayMax: deps.ReconnectDelayMax,
		Logger:            deps.Logger,
	}, live.Handlers{
		OnNotification: func(raw models.RawNotification) { s.Notifications.Ingest(raw) },
		OnMessage:      func(raw models.RawMessage) { s.Messages.Ingest(raw) },
		OnStatus: func(st live.Status) {
			s.statusChanged(st)
			if deps.OnStatus != nil {
				deps.OnStatus(st)
			}
		},
	})
	if !s.channel.Enabled() {
		s.log.Info().Msg("live updates disabled")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.Notifications.Initialize(fetchCtx, deps.User.ID)
	cancel()

	if deps.ResyncInterval > 0 {
		s.scheduler = gocron.NewScheduler(time.UTC)
		_, err := s.scheduler.Every(deps.ResyncInterval).WaitForSchedule().SingletonMode().Do(s.resyncIfDisconnected)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.scheduler.StartAsync()
	}
	return s, nil
}

func (s *Session) User() models.Participant { return s.user }

// LiveStatus reports the state of the live channel.
func (s *Session) LiveStatus() live.Status { return s.channel.Status() }

// Context is cancelled by Close. UI commands issued on behalf of the session
// should derive from it.
func (s *Session) Context() context.Context { return s.ctx }

// Close resets both stores, so nothing still in flight can land, then closes
// the channel and stops the resync job. Only the first call has an effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.Notifications.Reset()
		s.Messages.Reset()
		s.channel.Close()
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		s.log.Info().Msg("session closed")
	})
}

// Resync refetches notifications now.
func (s *Session) Resync() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	err := s.Notifications.Resync(ctx)
	if err != nil {
		resyncs.WithLabelValues(resultError).Inc()
		return err
	}
	resyncs.WithLabelValues(resultOK).Inc()
	return nil
}

func (s *Session) resyncIfDisconnected() {
	if s.ctx.Err() != nil || s.channel.Connected() {
		return
	}
	if err := s.Resync(); err != nil {
		s.log.Warn().Err(err).Msg("notification resync failed")
	}
}

// statusChanged runs on the channel's reader goroutine. Pushes missed while
// disconnected are recovered by one resync after reconnecting.
func (s *Session) statusChanged(st live.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st {
	case live.StatusDisconnected:
		s.dropped = true
	case live.StatusConnected:
		if !s.dropped {
			return
		}
		s.dropped = false
		go func() {
			if err := s.Resync(); err != nil && s.ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("resync after reconnect failed")
			}
		}()
	}
}
