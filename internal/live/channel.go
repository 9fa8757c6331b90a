// Package live maintains the per-user websocket that carries pushed
// notifications and chat messages, and routes each frame to the matching
// handler.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/addisbroker/realtime/internal/logging"
	"github.com/addisbroker/realtime/internal/models"
)

type Status int

const (
	StatusDisabled Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

const (
	defaultReconnectDelay    = time.Second
	defaultReconnectDelayMax = 5 * time.Second
	readLimit                = 1 << 20
)

type Config struct {
	// ServerURL of the socket backend. Empty disables the channel.
	ServerURL string
	// UserID doubles as the room id.
	UserID string
	// Token returns the bearer token sent on each dial. Optional.
	Token func() string

	Dialer            *websocket.Dialer
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	Logger            zerolog.Logger
}

// Handlers receive classified events on the channel's reader goroutine.
// Any of them may be nil.
type Handlers struct {
	OnNotification func(models.RawNotification)
	OnMessage      func(models.RawMessage)
	OnStatus       func(Status)
}

type Channel struct {
	cfg      Config
	handlers Handlers
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex // guards conn and serializes writes
	conn      *websocket.Conn
	status    atomic.Int32
}

// Open starts the channel. With an empty ServerURL, or no UserID, it returns
// an inert channel that never touches the network.
func Open(cfg Config, h Handlers) *Channel {
	c := &Channel{
		cfg:      cfg,
		handlers: h,
		log:      logging.Component(cfg.Logger, "live").With().Str(logging.USER, cfg.UserID).Logger(),
		done:     make(chan struct{}),
	}
	c.status.Store(int32(StatusDisabled))

	if cfg.ServerURL == "" || cfg.UserID == "" {
		if cfg.ServerURL != "" {
			c.log.Warn().Msg("live channel disabled: no user id")
		}
		close(c.done)
		return c
	}

	if c.cfg.Dialer == nil {
		c.cfg.Dialer = websocket.DefaultDialer
	}
	if c.cfg.ReconnectDelay <= 0 {
		c.cfg.ReconnectDelay = defaultReconnectDelay
	}
	if c.cfg.ReconnectDelayMax < c.cfg.ReconnectDelay {
		c.cfg.ReconnectDelayMax = max(defaultReconnectDelayMax, c.cfg.ReconnectDelay)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.run()
	return c
}

func (c *Channel) Enabled() bool { return c.cancel != nil }

func (c *Channel) Status() Status { return Status(c.status.Load()) }

func (c *Channel) Connected() bool { return c.Status() == StatusConnected }

// Close tears the connection down and waits for the reader to exit. Only the
// first call has an effect.
func (c *Channel) Close() {
	if !c.Enabled() {
		return
	}
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			_ = c.conn.Close()
		}
		c.mu.Unlock()
		<-c.done
		c.setStatus(StatusClosed)
	})
}

func (c *Channel) run() {
	defer close(c.done)

	delay := c.cfg.ReconnectDelay
	for c.ctx.Err() == nil {
		c.setStatus(StatusConnecting)
		conn, err := c.dial()
		if err != nil {
			connectsTotal.WithLabelValues("error").Inc()
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("live connect failed")
			c.setStatus(StatusDisconnected)
			if !c.sleep(delay) {
				return
			}
			delay = min(delay*2, c.cfg.ReconnectDelayMax)
			continue
		}
		connectsTotal.WithLabelValues("ok").Inc()

		if !c.attach(conn) {
			return
		}
		if err := c.join(); err != nil {
			c.log.Warn().Err(err).Msg("room join failed")
		} else {
			delay = c.cfg.ReconnectDelay
			c.setStatus(StatusConnected)
			c.log.Info().Msg("live channel connected")
			c.readLoop(conn)
		}
		c.detach(conn)

		if c.ctx.Err() != nil {
			return
		}
		c.setStatus(StatusDisconnected)
		c.log.Info().Dur("retry_in", delay).Msg("live channel disconnected")
		if !c.sleep(delay) {
			return
		}
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	u, err := socketURL(c.cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.cfg.Token != nil {
		if token := c.cfg.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	conn, resp, err := c.cfg.Dialer.DialContext(c.ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial failed: %s", resp.Status)
		}
		return nil, fmt.Errorf("ws dial error: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// attach publishes conn for Close. It reports false, closing conn, when the
// channel was closed while dialing.
func (c *Channel) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	c.conn = conn
	return true
}

func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	_ = conn.Close()
}

func (c *Channel) join() error {
	frame, err := joinFrame(c.cfg.UserID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("live read ended")
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(frame []byte) {
	ev, err := Classify(frame)
	if err != nil {
		eventsTotal.WithLabelValues(kindMalformed).Inc()
		c.log.Debug().Int("bytes", len(frame)).Msg("dropping malformed frame")
		return
	}

	switch ev := ev.(type) {
	case MessageEvent:
		eventsTotal.WithLabelValues(kindMessage).Inc()
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(ev.Message)
		}
	case NotificationEvent:
		eventsTotal.WithLabelValues(kindNotification).Inc()
		if c.handlers.OnNotification != nil {
			c.handlers.OnNotification(ev.Notification)
		}
	}
}

func (c *Channel) setStatus(s Status) {
	if Status(c.status.Swap(int32(s))) == s {
		return
	}
	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(s)
	}
}

func (c *Channel) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// socketURL maps http(s) URLs onto ws(s).
func socketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing socket url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
