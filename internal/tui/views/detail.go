package views

import (
	"fmt"
	"sort"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/rivo/tview"
)

// Detail shows the preview dialog for a referenced entity.
type Detail struct {
	*tview.TextView
}

// NewDetail creates the detail view.
func NewDetail() *Detail {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)

	return &Detail{TextView: tv}
}

// Update renders the entity detail. Fields print in sorted key order so
// the dialog is stable across refreshes.
func (d *Detail) Update(ref reftoken.Ref, detail *api.EntityDetail) {
	d.Clear()
	d.SetTitle(fmt.Sprintf(" %s #%d ", ref.Type, ref.ID))

	_, _ = fmt.Fprintf(d, "[::b]%s[-:-:-]\n", tview.Escape(detail.Name))
	if detail.Subtitle != "" {
		_, _ = fmt.Fprintf(d, "[::d]%s[-:-:-]\n", tview.Escape(detail.Subtitle))
	}
	_, _ = fmt.Fprintln(d)

	keys := make([]string, 0, len(detail.Fields))
	for k := range detail.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(d, "%s: %s\n", tview.Escape(k), tview.Escape(detail.Fields[k]))
	}

	if ref.Type == reftoken.User {
		_, _ = fmt.Fprint(d, "\n[::d]m:message  esc:close[-:-:-]")
	} else {
		_, _ = fmt.Fprint(d, "\n[::d]esc:close[-:-:-]")
	}
}

// UpdateError renders a lookup failure in place of the detail.
func (d *Detail) UpdateError(ref reftoken.Ref, err error) {
	d.Clear()
	d.SetTitle(fmt.Sprintf(" %s #%d ", ref.Type, ref.ID))
	_, _ = fmt.Fprintf(d, "[::b]%s[-:-:-]\n\n[red]%s[-]\n\n[::d]esc:close[-:-:-]",
		tview.Escape(ref.Name), tview.Escape(err.Error()))
}
