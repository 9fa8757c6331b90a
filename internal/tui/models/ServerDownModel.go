package models

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/addisbroker/realtime/internal/tui/styles"
)

// ServerDownModel shows a centered message when the backend is unreachable.
type ServerDownModel struct {
	env    *Env
	width  int
	height int
}

func NewServerDownModel(env *Env, sz size) ServerDownModel {
	return ServerDownModel{env: env, width: sz.width, height: sz.height}
}

func (m ServerDownModel) Init() tea.Cmd { return nil }

func (m ServerDownModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "r", "enter":
			login := NewLoginModel(m.env, size{width: m.width, height: m.height})
			return login, login.Init()
		case "q", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ServerDownModel) View() string {
	cw := min(m.width-8, 64)
	if cw < 32 {
		cw = max(m.width-4, 20)
	}

	title := styles.TitleStyle.Render("AddisBroker")
	friendly := styles.MutedTextStyle.Render("We can't reach the server right now. Please try again later.")

	titleLine := lipgloss.Place(cw, 1, lipgloss.Center, lipgloss.Center, title)
	bodyLine := lipgloss.Place(cw, 1, lipgloss.Center, lipgloss.Center, friendly)

	help := strings.Join([]string{
		styles.RenderKeyBinding("r", "Retry"),
		styles.RenderKeyBinding("q", "Quit"),
	}, styles.HelpStyle.Render("  "))
	footer := lipgloss.Place(cw, 1, lipgloss.Center, lipgloss.Center, help)

	card := styles.CardStyle.Width(cw).Render(strings.Join([]string{
		titleLine,
		"",
		bodyLine,
		"",
		footer,
	}, "\n"))

	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
	}
	return styles.AppStyle.Render(card)
}
