package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/rivo/tview"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// deliveryTicks renders the delivery state of an own message.
func deliveryTicks(status string) string {
	switch status {
	case api.StatusRead:
		return "[blue]✓✓[-]"
	case api.StatusDelivered:
		return "✓✓"
	case api.StatusSent:
		return "✓"
	default:
		return ""
	}
}

// initials derives the avatar initials for a user card.
func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			out = append(out, r)
			break
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return strings.ToUpper(string(out))
}

// refLabel renders an inline entity reference chip.
func refLabel(r *reftoken.Ref) string {
	return fmt.Sprintf("[green][%s: %s][-]", r.Type, tview.Escape(r.Name))
}

// renderContent converts message content into tview markup: plain runs
// escaped, reference tokens as chips, gif tokens as a media line.
func renderContent(content string) string {
	if url, ok := reftoken.GifURL(content); ok {
		return fmt.Sprintf("[purple][gif][-] %s", tview.Escape(url))
	}

	var out string
	for _, seg := range reftoken.Segments(content) {
		if seg.Ref != nil {
			if out != "" {
				out += " "
			}
			out += refLabel(seg.Ref)
			continue
		}
		out += tview.Escape(seg.Text)
	}
	return out
}
