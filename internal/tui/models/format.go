package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/addisbroker/realtime/internal/live"
	appmodels "github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/tui/styles"
)

func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "sometime"
	}
	if t.After(now) {
		return fmt.Sprintf("in %s", humanizeDuration(t.Sub(now)))
	}
	return fmt.Sprintf("%s ago", humanizeDuration(now.Sub(t)))
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("%ds", secs)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}

func typeLabel(t appmodels.NotificationType) string {
	switch t {
	case appmodels.PropertyApproved:
		return "APPROVED"
	case appmodels.PropertyRejected:
		return "REJECTED"
	case appmodels.PropertyUpdated:
		return "UPDATED"
	case appmodels.PasswordReset:
		return "PASSWORD"
	}
	return strings.ToUpper(string(t))
}

// counterpartFromMetadata finds the user a notification is about, for
// notifications that lead into a conversation.
func counterpartFromMetadata(n appmodels.Notification) (appmodels.Participant, bool) {
	id := n.MetadataString("counterpartId")
	if id == "" {
		id = n.MetadataString("senderId")
	}
	if id == "" {
		return appmodels.Participant{}, false
	}
	name := n.MetadataString("counterpartName")
	if name == "" {
		name = n.MetadataString("senderName")
	}
	return appmodels.Participant{ID: id, Name: name}, true
}

func displayName(p appmodels.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func renderUnreadBadge(n int) string {
	if n == 0 {
		return styles.MutedTextStyle.Render("no unread")
	}
	return styles.UnreadBadgeStyle.Render(fmt.Sprintf("%d unread", n))
}

func renderLiveStatus(s live.Status) string {
	switch s {
	case live.StatusConnected:
		return styles.LiveOnStyle.Render("● live")
	case live.StatusDisabled:
		return styles.MutedTextStyle.Render("○ live updates off")
	}
	return styles.LiveOffStyle.Render("○ " + s.String())
}

// messageSummary describes unread chat messages per counterpart.
func messageSummary(counts map[string]int) string {
	if len(counts) == 0 {
		return "No unread messages."
	}
	ids := make([]string, 0, len(counts))
	total := 0
	for id, n := range counts {
		ids = append(ids, id)
		total += n
	}
	sort.Strings(ids)
	noun := "message"
	if total != 1 {
		noun = "messages"
	}
	return fmt.Sprintf("%d unread %s from %s", total, noun, strings.Join(ids, ", "))
}
