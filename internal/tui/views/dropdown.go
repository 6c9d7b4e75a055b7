package views

import (
	"fmt"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/compose"
	"github.com/rivo/tview"
)

// Dropdown is the mention suggestion list shown above the composer.
type Dropdown struct {
	*tview.List
}

// NewDropdown creates the mention dropdown.
func NewDropdown() *Dropdown {
	list := tview.NewList().
		ShowSecondaryText(true)
	list.SetBorder(true)

	return &Dropdown{List: list}
}

// ShowTypes fills the dropdown with the fixed entity-type menu.
func (d *Dropdown) ShowTypes(opts []compose.TypeOption, onSelect func(compose.TypeOption)) {
	d.Clear()
	d.SetTitle(" Reference type ")
	for _, opt := range opts {
		opt := opt
		d.AddItem(opt.Label, "@"+opt.Prefix, 0, func() { onSelect(opt) })
	}
}

// ShowHits fills the dropdown with live search results.
func (d *Dropdown) ShowHits(title string, hits []api.EntityHit, onSelect func(api.EntityHit)) {
	d.Clear()
	d.SetTitle(fmt.Sprintf(" %s ", title))
	for _, hit := range hits {
		hit := hit
		d.AddItem(tview.Escape(hit.Name), tview.Escape(hit.Subtitle), 0, func() { onSelect(hit) })
	}
}
