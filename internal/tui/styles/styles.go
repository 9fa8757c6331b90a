package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type ColorType struct {
	value lipgloss.Color
}

func (c ColorType) Value() lipgloss.Color {
	return c.value
}

var (
	PrimaryColor   = ColorType{lipgloss.Color("#D12182")}
	SecondaryColor = ColorType{lipgloss.Color("#874BFD")}
	AccentColor    = ColorType{lipgloss.Color("#FFFFFF")}
	MutedColor     = ColorType{lipgloss.Color("#71717a")}

	RedColor   = ColorType{lipgloss.Color("9")}
	AquaColor  = ColorType{lipgloss.Color("86")}
	LimeColor  = ColorType{lipgloss.Color("#00FF77")}
	AmberColor = ColorType{lipgloss.Color("#FF8800")}

	AppStyle = lipgloss.NewStyle().Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor.Value())

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor.Value())

	MutedTextStyle = lipgloss.NewStyle().
			Foreground(MutedColor.Value())

	CardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor.Value()).
			Padding(1, 3)

	CardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor.Value())

	CardSubtitleStyle = lipgloss.NewStyle().
				Foreground(MutedColor.Value()).
				Italic(true)

	PaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor.Value()).
			Padding(0, 1)

	PaneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor.Value())

	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	KeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor.Value())

	StatusBarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(lipgloss.Color("#3f3f46"))

	StatusMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa"))
	StatusInfoStyle    = lipgloss.NewStyle().Foreground(AquaColor.Value())
	StatusSuccessStyle = lipgloss.NewStyle().Foreground(LimeColor.Value())
	StatusErrorStyle   = lipgloss.NewStyle().Foreground(RedColor.Value()).Bold(true)

	LiveOnStyle  = lipgloss.NewStyle().Foreground(LimeColor.Value())
	LiveOffStyle = lipgloss.NewStyle().Foreground(AmberColor.Value())

	InputPromptStyle        = lipgloss.NewStyle().Foreground(MutedColor.Value())
	InputPromptFocusedStyle = lipgloss.NewStyle().Foreground(PrimaryColor.Value())
	InputTextStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4d4d8"))
	InputTextFocusedStyle   = lipgloss.NewStyle().Foreground(AccentColor.Value())
	InputPlaceholderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52525b"))

	InputFieldStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#3f3f46")).
			Padding(0, 1)

	InputFieldFocusedStyle = InputFieldStyle.
				BorderForeground(PrimaryColor.Value())

	ButtonStyle = lipgloss.NewStyle().
			Foreground(MutedColor.Value()).
			Padding(0, 2)

	ButtonFocusedStyle = lipgloss.NewStyle().
				Foreground(AccentColor.Value()).
				Background(SecondaryColor.Value()).
				Bold(true).
				Padding(0, 2)

	ListItemTitleStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4d4d8"))
	ListItemTitleSelectedStyle = lipgloss.NewStyle().Foreground(AccentColor.Value()).Bold(true)
	ListItemUnreadStyle        = lipgloss.NewStyle().Foreground(PrimaryColor.Value()).Bold(true)
	ListItemMetaStyle          = lipgloss.NewStyle().Foreground(MutedColor.Value())

	UnreadBadgeStyle = lipgloss.NewStyle().
				Foreground(AccentColor.Value()).
				Background(PrimaryColor.Value()).
				Padding(0, 1)

	MessageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			PaddingLeft(2)

	UsernameStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor.Value()).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(PrimaryColor.Value()).
			BorderLeft(true).
			PaddingLeft(1)

	OwnUsernameStyle = lipgloss.NewStyle().
				Foreground(AquaColor.Value()).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(AquaColor.Value()).
				BorderLeft(true).
				PaddingLeft(1)

	PendingStyle = lipgloss.NewStyle().Foreground(MutedColor.Value()).Italic(true)
	FailedStyle  = lipgloss.NewStyle().Foreground(RedColor.Value())

	InputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			MarginTop(1)

	NavStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AmberColor.Value())

	TimestampStyle = lipgloss.NewStyle().Foreground(MutedColor.Value()).Italic(true)

	DateSeparatorStyle = lipgloss.NewStyle().
				Foreground(MutedColor.Value()).
				Align(lipgloss.Center)
)

func RenderKeyBinding(key, action string) string {
	return fmt.Sprintf("%s %s", KeyStyle.Render(key), HelpStyle.Render(action))
}

func RenderButton(label string, focused bool) string {
	if focused {
		return ButtonFocusedStyle.Render(label)
	}
	return ButtonStyle.Render(fmt.Sprintf("[ %s ]", label))
}
