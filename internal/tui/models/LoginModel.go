package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/addisbroker/realtime/internal/tui/styles"
)

type LoginModel struct {
	env           *Env
	inputs        []textinput.Model
	cursorMode    cursor.Mode
	focusIndex    int
	width         int
	height        int
	submitting    bool
	statusMessage string
	statusStyle   lipgloss.Style
}

func NewLoginModel(env *Env, sz size) LoginModel {
	email := textinput.New()
	email.Placeholder = "Email"
	email.CharLimit = 96
	email.Prompt = "> "
	email.PromptStyle = styles.InputPromptFocusedStyle
	email.TextStyle = styles.InputTextFocusedStyle
	email.PlaceholderStyle = styles.InputPlaceholderStyle
	email.Cursor.Style = styles.KeyStyle
	email.Focus()

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 64
	password.Prompt = "> "
	password.PromptStyle = styles.InputPromptStyle
	password.TextStyle = styles.InputTextStyle
	password.PlaceholderStyle = styles.InputPlaceholderStyle
	password.Cursor.Style = styles.KeyStyle
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	m := LoginModel{
		env:           env,
		inputs:        []textinput.Model{email, password},
		cursorMode:    cursor.CursorBlink,
		statusMessage: "Sign in with your AddisBroker account.",
		statusStyle:   styles.StatusMessageStyle,
	}
	m.resize(sz)
	return m
}

func (m LoginModel) withStatus(text string, style lipgloss.Style) LoginModel {
	m.statusMessage = text
	m.statusStyle = style
	return m
}

func (m *LoginModel) resize(sz size) {
	m.width, m.height = sz.width, sz.height
	fieldWidth := min(max(sz.width-20, 28), 48)
	for i := range m.inputs {
		m.inputs[i].Width = fieldWidth
	}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(size{width: msg.Width, height: msg.Height})
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, tea.Quit

		case "ctrl+r":
			if m.submitting {
				return m, nil
			}
			m.cursorMode++
			if m.cursorMode > cursor.CursorHide {
				m.cursorMode = cursor.CursorBlink
			}
			cmds := make([]tea.Cmd, len(m.inputs))
			for i := range m.inputs {
				cmds[i] = m.inputs[i].Cursor.SetMode(m.cursorMode)
			}
			return m, tea.Batch(cmds...)

		case "tab", "shift+tab", "enter", "up", "down":
			if m.submitting {
				return m, nil
			}

			s := msg.String()
			if s == "enter" && m.focusIndex == len(m.inputs) {
				email := strings.TrimSpace(m.inputs[0].Value())
				password := m.inputs[1].Value()
				if email == "" || password == "" {
					m.statusMessage = "Email and password are required."
					m.statusStyle = styles.StatusErrorStyle
					return m, nil
				}

				m.submitting = true
				m.statusMessage = "Authenticating..."
				m.statusStyle = styles.StatusInfoStyle
				return m, tea.Batch(m.applyFocusStyles(), login(m.env, email, password))
			}

			if s == "tab" || s == "enter" || s == "down" {
				m.focusIndex++
			} else {
				m.focusIndex--
			}

			if m.focusIndex < 0 {
				m.focusIndex = len(m.inputs)
			} else if m.focusIndex > len(m.inputs) {
				m.focusIndex = 0
			}

			return m, m.applyFocusStyles()
		}

	case loginFailedMsg:
		m.submitting = false
		if isUnreachable(msg.err) {
			m.env.Logger.Warn().Err(msg.err).Msg("login: backend unreachable")
			return NewServerDownModel(m.env, size{width: m.width, height: m.height}), nil
		}
		m.statusMessage = msg.err.Error()
		m.statusStyle = styles.StatusErrorStyle
		m.focusIndex = 1
		m.inputs[1].Reset()
		return m, m.applyFocusStyles()
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m LoginModel) applyFocusStyles() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		if i == m.focusIndex {
			m.inputs[i].PromptStyle = styles.InputPromptFocusedStyle
			m.inputs[i].TextStyle = styles.InputTextFocusedStyle
			if !m.inputs[i].Focused() {
				cmds[i] = m.inputs[i].Focus()
			}
			continue
		}

		m.inputs[i].PromptStyle = styles.InputPromptStyle
		m.inputs[i].TextStyle = styles.InputTextStyle
		if m.inputs[i].Focused() {
			m.inputs[i].Blur()
		}
	}

	return tea.Batch(cmds...)
}

func (m LoginModel) View() string {
	fields := make([]string, len(m.inputs))
	for i := range m.inputs {
		view := m.inputs[i].View()
		if i == m.focusIndex {
			fields[i] = styles.InputFieldFocusedStyle.Render(view)
		} else {
			fields[i] = styles.InputFieldStyle.Render(view)
		}
	}

	form := strings.Join(fields, "\n\n")
	button := styles.RenderButton("Sign in", m.focusIndex == len(m.inputs))

	helpItems := []string{
		styles.RenderKeyBinding("Tab", "Next field"),
		styles.RenderKeyBinding("Enter", "Submit"),
		styles.RenderKeyBinding("Ctrl+R", fmt.Sprintf("Cursor: %s", m.cursorMode.String())),
		styles.RenderKeyBinding("Esc", "Quit"),
	}
	help := strings.Join(helpItems, styles.HelpStyle.Render("  "))

	sections := []string{
		styles.CardTitleStyle.Render("AddisBroker"),
		styles.CardSubtitleStyle.Render("Notifications and messages, live in your terminal."),
		form,
		button,
	}
	if m.statusMessage != "" {
		sections = append(sections, m.statusStyle.Render(m.statusMessage))
	}
	sections = append(sections, help)

	card := styles.CardStyle.Render(strings.Join(sections, "\n\n"))

	if m.width > 0 && m.height > 0 {
		card = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
	}
	return card
}
