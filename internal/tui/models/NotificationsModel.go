package models

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/addisbroker/realtime/internal/live"
	appmodels "github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/session"
	"github.com/addisbroker/realtime/internal/tui/styles"
)

type NotificationsModel struct {
	sess          *session.Session
	timeout       time.Duration
	notifications list.Model
	width         int
	height        int
	flashMessage  string
	flashStyle    lipgloss.Style
	busy          bool
	live          live.Status
}

func NewNotificationsModel(sess *session.Session, timeout time.Duration, sz size) NotificationsModel {
	alertList := list.New([]list.Item{}, alertDelegate{}, 80, 18)
	alertList.SetShowHelp(false)
	alertList.SetShowTitle(false)
	alertList.SetShowStatusBar(false)
	alertList.SetFilteringEnabled(false)
	alertList.DisableQuitKeybindings()

	m := NotificationsModel{
		sess:          sess,
		timeout:       timeout,
		notifications: alertList,
		flashStyle:    styles.StatusInfoStyle,
		live:          sess.LiveStatus(),
	}
	m.resize(sz)
	m.refresh()
	return m
}

func (m NotificationsModel) Init() tea.Cmd { return nil }

func (m *NotificationsModel) resize(sz size) {
	m.width, m.height = sz.width, sz.height
	m.notifications.SetSize(max(sz.width-8, 16), max(sz.height-12, 8))
}

// refresh rebuilds the list from the store, keeping the selection on the
// same notification when it still exists.
func (m *NotificationsModel) refresh() {
	var selected string
	if it, ok := m.notifications.SelectedItem().(alertItem); ok {
		selected = it.notification.ID
	}
	items := buildAlertItems(m.sess.Notifications.Notifications())
	m.notifications.SetItems(items)
	for i, it := range items {
		if it.(alertItem).notification.ID == selected {
			m.notifications.Select(i)
			break
		}
	}
}

func (m NotificationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(size{width: msg.Width, height: msg.Height})
		return m, nil

	case notificationsChangedMsg, messagesChangedMsg:
		m.refresh()
		return m, nil

	case liveStatusMsg:
		m.live = msg.status
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.flashMessage = fmt.Sprintf("Could not %s: %v", msg.verb, msg.err)
			m.flashStyle = styles.StatusErrorStyle
			return m, nil
		}
		m.flashMessage = ""
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg.String()); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.notifications, cmd = m.notifications.Update(msg)
	return m, cmd
}

func (m *NotificationsModel) handleKey(key string) (tea.Cmd, bool) {
	store := m.sess.Notifications
	selected, hasSelection := m.notifications.SelectedItem().(alertItem)

	switch key {
	case "q", "esc":
		return tea.Quit, true
	case "L":
		return logout, true
	case "r":
		return m.run("refresh", func(context.Context) error { return m.sess.Resync() }), true
	case "enter":
		if !hasSelection || selected.notification.IsRead {
			return nil, true
		}
		id := selected.notification.ID
		return m.run("mark as read", func(ctx context.Context) error { return store.MarkRead(ctx, id) }), true
	case "a":
		return m.run("mark all as read", store.MarkAllRead), true
	case "d":
		if !hasSelection {
			return nil, true
		}
		id := selected.notification.ID
		return m.run("clear notification", func(ctx context.Context) error { return store.Clear(ctx, id) }), true
	case "D":
		return m.run("clear notifications", store.ClearAll), true
	case "o":
		if !hasSelection {
			return nil, true
		}
		counterpart, ok := counterpartFromMetadata(selected.notification)
		if !ok {
			m.flashMessage = "This notification has no conversation."
			m.flashStyle = styles.StatusMessageStyle
			return nil, true
		}
		conv := NewConversationModel(m.sess, counterpart, m.timeout, size{width: m.width, height: m.height})
		return switchTo(conv), true
	case "m":
		counterpart, ok := m.busiestConversation()
		if !ok {
			m.flashMessage = "No unread messages."
			m.flashStyle = styles.StatusMessageStyle
			return nil, true
		}
		conv := NewConversationModel(m.sess, counterpart, m.timeout, size{width: m.width, height: m.height})
		return switchTo(conv), true
	}
	return nil, false
}

// run starts a store action unless one is already running.
func (m *NotificationsModel) run(verb string, fn func(ctx context.Context) error) tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	m.flashMessage = strings.ToUpper(verb[:1]) + verb[1:] + "..."
	m.flashStyle = styles.StatusInfoStyle
	return storeAction(m.sess, m.timeout, verb, fn)
}

// busiestConversation picks the counterpart with the most unread messages.
func (m NotificationsModel) busiestConversation() (appmodels.Participant, bool) {
	counts := m.sess.Messages.UnreadCounts()
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return appmodels.Participant{}, false
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return appmodels.Participant{ID: ids[0]}, true
}

func (m NotificationsModel) View() string {
	store := m.sess.Notifications
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.TitleStyle.Render("Notifications"),
		"  ",
		renderUnreadBadge(store.UnreadCount()),
		"  ",
		renderLiveStatus(m.live),
	)
	subtitle := styles.SubtitleStyle.Render(fmt.Sprintf("Signed in as %s", displayName(m.sess.User())))

	var body string
	switch {
	case store.Loading():
		body = styles.StatusInfoStyle.Render("Loading notifications...")
	case len(m.notifications.Items()) == 0 && store.Err() != "":
		body = styles.StatusErrorStyle.Render(store.Err())
	case len(m.notifications.Items()) == 0:
		body = styles.MutedTextStyle.Render("You're all caught up.")
	default:
		body = m.notifications.View()
	}
	pane := styles.PaneStyle.Width(max(m.width-6, 20)).Render(body)

	status := m.flashMessage
	statusStyle := m.flashStyle
	if status == "" {
		status = messageSummary(m.sess.Messages.UnreadCounts())
		statusStyle = styles.StatusMessageStyle
	}

	helpItems := []string{
		styles.RenderKeyBinding("Enter", "Mark read"),
		styles.RenderKeyBinding("a", "Mark all"),
		styles.RenderKeyBinding("d", "Clear"),
		styles.RenderKeyBinding("D", "Clear all"),
		styles.RenderKeyBinding("o", "Open chat"),
		styles.RenderKeyBinding("m", "Unread chat"),
		styles.RenderKeyBinding("r", "Refresh"),
		styles.RenderKeyBinding("L", "Log out"),
		styles.RenderKeyBinding("q", "Quit"),
	}
	help := strings.Join(helpItems, styles.HelpStyle.Render("  "))
	footer := styles.StatusBarStyle.Render(statusStyle.Render(status) + "\n" + help)

	layout := lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "", pane, "", footer)
	return styles.AppStyle.Render(layout)
}

type alertItem struct {
	notification appmodels.Notification
}

func (a alertItem) FilterValue() string { return a.notification.Title }

type alertDelegate struct{}

func (d alertDelegate) Height() int                               { return 2 }
func (d alertDelegate) Spacing() int                              { return 1 }
func (d alertDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d alertDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(alertItem)
	if !ok {
		return
	}
	n := item.notification

	isSelected := index == m.Index()
	titleStyle := styles.ListItemTitleStyle
	switch {
	case isSelected:
		titleStyle = styles.ListItemTitleSelectedStyle
	case !n.IsRead:
		titleStyle = styles.ListItemUnreadStyle
	}

	marker := "  "
	if !n.IsRead {
		marker = styles.ListItemUnreadStyle.Render("● ")
	}
	pointer := "  "
	if isSelected {
		pointer = styles.KeyStyle.Render("> ")
	}

	title := titleStyle.Render(fmt.Sprintf("[%s] %s", typeLabel(n.Type), n.Title))
	meta := styles.ListItemMetaStyle.Render(fmt.Sprintf("%s · %s", n.Message, formatRelativeTime(n.CreatedAt, time.Now())))

	fmt.Fprintf(w, "%s%s%s\n    %s", pointer, marker, title, meta)
}

func buildAlertItems(alerts []appmodels.Notification) []list.Item {
	items := make([]list.Item, len(alerts))
	for i, alert := range alerts {
		items[i] = alertItem{notification: alert}
	}
	return items
}
