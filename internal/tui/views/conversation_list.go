package views

import (
	"fmt"
	"strings"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	convs  []api.Conversation
	filter string
}

// NewConversationList creates the conversation table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	return &ConversationList{Table: table}
}

// SetFilter narrows the list to conversations whose name contains the
// given substring (case-insensitive). Empty clears the filter.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	if filter == "" {
		cl.SetTitle(" Conversations ")
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations /%s ", filter))
	}
}

// Update refreshes the table from the cache snapshot, applying the
// active filter.
func (cl *ConversationList) Update(convs []api.Conversation) {
	needle := strings.ToLower(cl.filter)
	cl.convs = cl.convs[:0]
	for _, c := range convs {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		cl.convs = append(cl.convs, c)
	}

	cl.Clear()
	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range cl.convs {
		row := i + 1

		name := c.Name
		if c.OtherUserOnline {
			name = "● " + name
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.UnreadCount)
		}

		preview := ""
		if c.OtherUserTyping {
			preview = "[green]typing…[-]"
		} else if c.LastMessage != nil {
			preview = renderContent(c.LastMessage.Content)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(name)).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+preview).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.UpdatedAt)).SetMaxWidth(12))
	}
}

// Selected returns the currently selected conversation, or nil.
func (cl *ConversationList) Selected() *api.Conversation {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.convs) {
		c := cl.convs[idx]
		return &c
	}
	return nil
}
