package models

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/addisbroker/realtime/internal/client"
	"github.com/addisbroker/realtime/internal/live"
	appmodels "github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/session"
)

type size struct {
	width  int
	height int
}

// messages routed by AppModel
type (
	loggedInMsg struct {
		user appmodels.Participant
	}
	loginFailedMsg struct {
		err error
	}
	sessionStartedMsg struct {
		sess *session.Session
		err  error
	}
	notificationsChangedMsg struct {
		sess *session.Session
	}
	messagesChangedMsg struct {
		sess *session.Session
	}
	liveStatusMsg struct {
		sess   *session.Session
		status live.Status
	}
	logoutMsg struct{}
)

// actionDoneMsg reports the outcome of a store mutation started from a
// screen.
type actionDoneMsg struct {
	verb string
	err  error
}

func waitForNotifications(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		<-sess.Notifications.Changes()
		return notificationsChangedMsg{sess: sess}
	}
}

func waitForMessages(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		<-sess.Messages.Changes()
		return messagesChangedMsg{sess: sess}
	}
}

func waitForStatus(sess *session.Session, statuses <-chan live.Status) tea.Cmd {
	return func() tea.Msg {
		return liveStatusMsg{sess: sess, status: <-statuses}
	}
}

func login(env *Env, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), env.Config.RequestTimeout)
		defer cancel()
		user, err := env.Client.Login(ctx, email, password)
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return loggedInMsg{user: user}
	}
}

func startSession(env *Env, user appmodels.Participant, statuses chan<- live.Status) tea.Cmd {
	return func() tea.Msg {
		sess, err := env.start(context.Background(), user, func(st live.Status) {
			select {
			case statuses <- st:
			default:
			}
		})
		return sessionStartedMsg{sess: sess, err: err}
	}
}

// storeAction runs fn against the session with the request timeout.
func storeAction(sess *session.Session, timeout time.Duration, verb string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(sess.Context(), timeout)
		defer cancel()
		return actionDoneMsg{verb: verb, err: fn(ctx)}
	}
}

func logout() tea.Msg { return logoutMsg{} }

// isUnreachable reports whether err came from the transport rather than
// from a backend response.
func isUnreachable(err error) bool {
	var httpErr *client.HTTPError
	return err != nil && !errors.As(err, &httpErr)
}

// switchScreenMsg asks AppModel to replace the current screen.
type switchScreenMsg struct {
	screen tea.Model
}

func switchTo(screen tea.Model) tea.Cmd {
	return func() tea.Msg { return switchScreenMsg{screen: screen} }
}
