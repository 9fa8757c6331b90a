package models

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/addisbroker/realtime/internal/client"
	"github.com/addisbroker/realtime/internal/config"
	"github.com/addisbroker/realtime/internal/live"
	appmodels "github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/session"
	"github.com/addisbroker/realtime/internal/tui/styles"
)

// Env is what every screen needs to reach the backend.
type Env struct {
	Client *client.APIClient
	Config config.Config
	Logger zerolog.Logger

	// StartSession overrides how a session is built. Optional.
	StartSession func(ctx context.Context, user appmodels.Participant, onStatus func(live.Status)) (*session.Session, error)
}

func (e *Env) start(ctx context.Context, user appmodels.Participant, onStatus func(live.Status)) (*session.Session, error) {
	if e.StartSession != nil {
		return e.StartSession(ctx, user, onStatus)
	}
	return session.Start(ctx, session.Deps{
		API:            e.Client,
		User:           user,
		SocketURL:      e.Config.SocketURL,
		Token:          e.Client.AccessToken,
		ResyncInterval: e.Config.ResyncInterval,
		RequestTimeout: e.Config.RequestTimeout,
		OnStatus:       onStatus,
		Logger:         e.Logger,
	})
}

// AppModel owns the session and its store subscriptions and delegates
// everything else to the current screen.
type AppModel struct {
	env      *Env
	screen   tea.Model
	sess     *session.Session
	statuses chan live.Status
	size     size
	pending  *appmodels.Participant
}

// NewAppModel starts on the login screen, or straight into a session when
// the stored token already names a user.
func NewAppModel(env *Env, width, height int) *AppModel {
	m := &AppModel{env: env, size: size{width: width, height: height}}
	if user, err := env.Client.CurrentUser(); err == nil && user.ID != "" {
		m.pending = &user
	} else {
		m.screen = NewLoginModel(env, m.size)
	}
	return m
}

func (m *AppModel) Init() tea.Cmd {
	if m.pending != nil {
		return m.begin(*m.pending)
	}
	return m.screen.Init()
}

func (m *AppModel) begin(user appmodels.Participant) tea.Cmd {
	m.pending = &user
	m.screen = nil
	m.statuses = make(chan live.Status, 8)
	return startSession(m.env, user, m.statuses)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.size = size{width: msg.Width, height: msg.Height}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Shutdown()
			return m, tea.Quit
		}
		if m.screen == nil && msg.String() == "q" {
			return m, tea.Quit
		}

	case loggedInMsg:
		return m, m.begin(msg.user)

	case sessionStartedMsg:
		m.pending = nil
		if msg.err != nil {
			m.env.Logger.Error().Err(msg.err).Msg("session start failed")
			m.screen = NewLoginModel(m.env, m.size).
				withStatus(fmt.Sprintf("Could not start session: %v", msg.err), styles.StatusErrorStyle)
			return m, m.screen.Init()
		}
		m.sess = msg.sess
		m.screen = NewNotificationsModel(m.sess, m.env.Config.RequestTimeout, m.size)
		return m, tea.Batch(
			m.screen.Init(),
			waitForNotifications(m.sess),
			waitForMessages(m.sess),
			waitForStatus(m.sess, m.statuses),
		)

	case notificationsChangedMsg:
		if msg.sess != m.sess || m.sess == nil {
			return m, nil
		}
		return m, tea.Batch(m.forward(msg), waitForNotifications(m.sess))

	case messagesChangedMsg:
		if msg.sess != m.sess || m.sess == nil {
			return m, nil
		}
		return m, tea.Batch(m.forward(msg), waitForMessages(m.sess))

	case liveStatusMsg:
		if msg.sess != m.sess || m.sess == nil {
			return m, nil
		}
		return m, tea.Batch(m.forward(msg), waitForStatus(m.sess, m.statuses))

	case switchScreenMsg:
		if m.sess == nil {
			return m, nil
		}
		m.screen = msg.screen
		return m, m.screen.Init()

	case logoutMsg:
		m.Shutdown()
		if err := m.env.Client.Logout(); err != nil {
			m.env.Logger.Warn().Err(err).Msg("logout")
		}
		m.screen = NewLoginModel(m.env, m.size)
		return m, m.screen.Init()
	}

	return m, m.forward(msg)
}

func (m *AppModel) forward(msg tea.Msg) tea.Cmd {
	if m.screen == nil {
		return nil
	}
	var cmd tea.Cmd
	m.screen, cmd = m.screen.Update(msg)
	return cmd
}

// Shutdown closes the current session, if any.
func (m *AppModel) Shutdown() {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
}

func (m *AppModel) View() string {
	if m.screen != nil {
		return m.screen.View()
	}
	name := "you"
	if m.pending != nil && m.pending.Name != "" {
		name = m.pending.Name
	}
	return styles.AppStyle.Render(styles.StatusInfoStyle.Render(fmt.Sprintf("Signing in as %s...", name)))
}
