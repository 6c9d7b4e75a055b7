package views

import (
	"fmt"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/rivo/tview"
)

// Picker is a reusable modal list: gif results, the user directory.
type Picker struct {
	*tview.List
}

// NewPicker creates the picker.
func NewPicker() *Picker {
	list := tview.NewList().
		ShowSecondaryText(true)
	list.SetBorder(true)

	return &Picker{List: list}
}

// ShowGifs fills the picker with gif search results.
func (p *Picker) ShowGifs(gifs []api.Gif, onSelect func(api.Gif)) {
	p.Clear()
	p.SetTitle(" Gifs ")
	for _, g := range gifs {
		g := g
		title := g.Title
		if title == "" {
			title = g.URL
		}
		p.AddItem(tview.Escape(title), tview.Escape(g.URL), 0, func() { onSelect(g) })
	}
}

// ShowUsers fills the picker with the messageable-user directory.
func (p *Picker) ShowUsers(users []api.User, onSelect func(api.User)) {
	p.Clear()
	p.SetTitle(" New conversation ")
	for _, u := range users {
		u := u
		name := u.Name
		if u.IsOnline {
			name = "● " + name
		}
		p.AddItem(tview.Escape(name), tview.Escape(u.Role), 0, func() { onSelect(u) })
	}
}

// ShowRefs fills the picker with entity references from the open
// thread.
func (p *Picker) ShowRefs(refs []reftoken.Ref, onSelect func(reftoken.Ref)) {
	p.Clear()
	p.SetTitle(" References ")
	for _, r := range refs {
		r := r
		p.AddItem(tview.Escape(r.Name), fmt.Sprintf("%s #%d", r.Type, r.ID), 0, func() { onSelect(r) })
	}
}

// ShowEmpty renders a no-results placeholder.
func (p *Picker) ShowEmpty(title string) {
	p.Clear()
	p.SetTitle(fmt.Sprintf(" %s ", title))
	p.AddItem("No results", "", 0, nil)
}
