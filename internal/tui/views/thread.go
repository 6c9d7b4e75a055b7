package views

import (
	"fmt"
	"sort"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/rivo/tview"
)

// DetailLookup resolves an entity reference against already-fetched
// detail data. nil means the detail is not cached (yet).
type DetailLookup func(ref reftoken.Ref) *api.EntityDetail

// Thread displays the message history of the open conversation.
type Thread struct {
	*tview.TextView
	selfID int64
	detail DetailLookup
	typing bool
	name   string
}

// NewThread creates the message thread view. detail enriches product
// cards when the data is cached; it may be nil.
func NewThread(selfID int64, detail DetailLookup) *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &Thread{TextView: tv, selfID: selfID, detail: detail}
}

// SetConversation updates the title with the conversation name.
func (t *Thread) SetConversation(name string) {
	t.name = name
	t.renderTitle()
}

// SetTyping toggles the typing indicator in the title.
func (t *Thread) SetTyping(typing bool) {
	t.typing = typing
	t.renderTitle()
}

func (t *Thread) renderTitle() {
	title := fmt.Sprintf(" %s ", t.name)
	if t.typing {
		title = fmt.Sprintf(" %s [green](typing…)[-] ", t.name)
	}
	t.SetTitle(title)
}

// Update re-renders the thread. Messages arrive already ordered oldest
// first.
func (t *Thread) Update(msgs []api.Message) {
	t.Clear()

	for _, m := range msgs {
		sender := m.SenderName
		ticks := ""
		if m.SenderID == t.selfID {
			sender = "You"
			ticks = " " + deliveryTicks(m.Status)
		}

		header := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n",
			tview.Escape(sender), formatTimestamp(m.CreatedAt), ticks)
		_, _ = fmt.Fprint(t, header)

		if m.ReplyTo != nil {
			_, _ = fmt.Fprintf(t, "[::d]↪ %s: %s[-:-:-]\n",
				tview.Escape(m.ReplyTo.SenderName), tview.Escape(m.ReplyTo.Snippet))
		}

		if card, ok := reftoken.SingleCard(m.Content); ok {
			t.renderCard(*card)
			continue
		}

		_, _ = fmt.Fprintf(t, "%s\n\n", renderContent(m.Content))
	}

	t.ScrollToEnd()
}

// renderCard renders the rich preview for a single-token message. A
// user card gets an initials avatar; a product card is enriched with
// the cached detail fields when they are available.
func (t *Thread) renderCard(card reftoken.Ref) {
	if card.Type == reftoken.User {
		_, _ = fmt.Fprintf(t, "[green]┌──────────────┐\n│ (%s) %s │\n└──────────────┘[-]\n\n",
			initials(card.Name), tview.Escape(card.Name))
		return
	}

	var detail *api.EntityDetail
	if t.detail != nil {
		detail = t.detail(card)
	}
	if detail == nil {
		_, _ = fmt.Fprintf(t, "[green]┌──────────────┐\n│ %s #%d %s │\n└──────────────┘[-]\n\n",
			card.Type, card.ID, tview.Escape(card.Name))
		return
	}

	_, _ = fmt.Fprintf(t, "[green]┌──────────────┐\n│ %s #%d %s │\n",
		card.Type, card.ID, tview.Escape(detail.Name))
	if detail.Subtitle != "" {
		_, _ = fmt.Fprintf(t, "│ %s │\n", tview.Escape(detail.Subtitle))
	}
	keys := make([]string, 0, len(detail.Fields))
	for k := range detail.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(t, "│ %s: %s │\n", tview.Escape(k), tview.Escape(detail.Fields[k]))
	}
	_, _ = fmt.Fprint(t, "└──────────────┘[-]\n\n")
}
