package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/addisbroker/realtime/internal/client"
	appmodels "github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/session"
	"github.com/addisbroker/realtime/internal/store"
	"github.com/addisbroker/realtime/internal/tui/styles"
)

type ConversationModel struct {
	sess         *session.Session
	timeout      time.Duration
	counterpart  appmodels.Participant
	messages     []appmodels.Message
	input        textarea.Model
	scrollIndex  int
	width        int
	height       int
	flashMessage string
	flashStyle   lipgloss.Style
}

type conversationOpenedMsg struct {
	err error
}

type sendResultMsg struct {
	err error
}

func NewConversationModel(sess *session.Session, counterpart appmodels.Participant, timeout time.Duration, sz size) ConversationModel {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.ShowLineNumbers = false
	input.Focus()
	input.SetHeight(3)
	input.CharLimit = 1000

	m := ConversationModel{
		sess:        sess,
		timeout:     timeout,
		counterpart: counterpart,
		input:       input,
	}
	m.resize(sz)
	return m
}

func (m ConversationModel) Init() tea.Cmd {
	sess, cp, timeout := m.sess, m.counterpart, m.timeout
	return tea.Batch(textarea.Blink, func() tea.Msg {
		ctx, cancel := context.WithTimeout(sess.Context(), timeout)
		defer cancel()
		return conversationOpenedMsg{err: sess.Messages.OpenConversation(ctx, cp)}
	})
}

func (m *ConversationModel) resize(sz size) {
	m.width, m.height = sz.width, sz.height
	m.input.SetWidth(max(sz.width-8, 20))
	m.clampScroll()
}

// visibleMessages is how many messages fit above the input.
func (m ConversationModel) visibleMessages() int {
	if m.height <= 0 {
		return 5
	}
	return max((m.height-14)/3, 3)
}

func (m *ConversationModel) clampScroll() {
	m.scrollIndex = min(m.scrollIndex, max(len(m.messages)-m.visibleMessages(), 0))
	m.scrollIndex = max(m.scrollIndex, 0)
}

func (m ConversationModel) atBottom() bool {
	return m.scrollIndex+m.visibleMessages() >= len(m.messages)
}

func (m *ConversationModel) refresh() {
	follow := m.atBottom()
	m.messages = m.sess.Messages.Messages(m.counterpart.ID)
	if follow {
		m.scrollIndex = len(m.messages)
	}
	m.clampScroll()
}

func (m ConversationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(size{width: msg.Width, height: msg.Height})
		return m, nil

	case messagesChangedMsg:
		m.refresh()
		return m, nil

	case conversationOpenedMsg:
		m.refresh()
		// a counterpart we never talked to may have no conversation yet
		if msg.err != nil && !client.IsNotFound(msg.err) {
			m.flashMessage = msg.err.Error()
			m.flashStyle = styles.StatusErrorStyle
		}
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.flashMessage = "Message not sent. Ctrl+R to retry, Ctrl+X to discard."
			m.flashStyle = styles.StatusErrorStyle
		} else {
			m.flashMessage = ""
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.scrollIndex = len(m.messages) + 1
			return m, m.send(func(ctx context.Context) error {
				_, err := m.sess.Messages.Send(ctx, m.counterpart, text)
				return err
			})
		case "ctrl+r":
			failed, ok := m.lastFailed()
			if !ok {
				return m, nil
			}
			return m, m.send(func(ctx context.Context) error {
				_, err := m.sess.Messages.Retry(ctx, m.counterpart.ID, failed.ID)
				return err
			})
		case "ctrl+x":
			if failed, ok := m.lastFailed(); ok {
				if err := m.sess.Messages.Discard(m.counterpart.ID, failed.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
					m.flashMessage = err.Error()
					m.flashStyle = styles.StatusErrorStyle
				} else {
					m.flashMessage = ""
				}
			}
			return m, nil
		case "esc":
			m.sess.Messages.CloseConversation(m.counterpart.ID)
			back := NewNotificationsModel(m.sess, m.timeout, size{width: m.width, height: m.height})
			return back, back.Init()
		case "up":
			if m.scrollIndex > 0 {
				m.scrollIndex--
			}
			return m, nil
		case "down":
			if !m.atBottom() {
				m.scrollIndex++
			}
			return m, nil
		}
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConversationModel) send(fn func(ctx context.Context) error) tea.Cmd {
	sess, timeout := m.sess, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(sess.Context(), timeout)
		defer cancel()
		return sendResultMsg{err: fn(ctx)}
	}
}

func (m ConversationModel) lastFailed() (appmodels.Message, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Failed() {
			return m.messages[i], true
		}
	}
	return appmodels.Message{}, false
}

func (m ConversationModel) View() string {
	var sb strings.Builder

	sb.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Conversation with %s", displayName(m.counterpart))) + "\n\n")

	loading, loadErr := m.sess.Messages.ConversationState(m.counterpart.ID)
	switch {
	case loading && len(m.messages) == 0:
		sb.WriteString(styles.StatusInfoStyle.Render("Loading messages...") + "\n")
	case loadErr != "" && m.flashMessage != "" && len(m.messages) == 0:
		sb.WriteString(styles.StatusErrorStyle.Render(loadErr) + "\n")
	case len(m.messages) == 0:
		sb.WriteString(styles.MutedTextStyle.Render("No messages yet. Say hello!") + "\n")
	}

	start := m.scrollIndex
	end := min(len(m.messages), start+m.visibleMessages())
	self := m.sess.User().ID

	if start > 0 {
		sb.WriteString(styles.NavStyle.Render("[↑] older") + "\n")
	}
	var lastDay string
	for _, message := range m.messages[start:end] {
		if day := message.CreatedAt.Local().Format("Mon, 02 Jan 2006"); day != lastDay {
			lastDay = day
			sb.WriteString(styles.DateSeparatorStyle.Width(max(m.width-8, 20)).Render("── "+day+" ──") + "\n")
		}
		sb.WriteString(renderMessage(message, self) + "\n")
	}
	if !m.atBottom() {
		sb.WriteString(styles.NavStyle.Render("[↓] newer") + "\n")
	}

	sb.WriteString(styles.InputStyle.Render(m.input.View()) + "\n")

	if m.flashMessage != "" {
		sb.WriteString(m.flashStyle.Render(m.flashMessage) + "\n")
	}
	help := strings.Join([]string{
		styles.RenderKeyBinding("Enter", "Send"),
		styles.RenderKeyBinding("↑/↓", "Scroll"),
		styles.RenderKeyBinding("Ctrl+R", "Retry"),
		styles.RenderKeyBinding("Esc", "Back"),
	}, styles.HelpStyle.Render("  "))
	sb.WriteString(help)

	return styles.AppStyle.Render(sb.String())
}

func renderMessage(message appmodels.Message, selfID string) string {
	name := styles.UsernameStyle.Render(displayName(message.Sender))
	if message.Sender.ID == selfID {
		name = styles.OwnUsernameStyle.Render("You")
	}

	stamp := styles.TimestampStyle.Render(message.CreatedAt.Local().Format("15:04"))
	switch {
	case message.Pending():
		stamp = styles.PendingStyle.Render("sending...")
	case message.Failed():
		stamp = styles.FailedStyle.Render("failed")
	}

	return name + " " + stamp + "\n" + styles.MessageStyle.Render(message.Content)
}
