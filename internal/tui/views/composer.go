package views

import (
	"fmt"
	"strings"

	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ComposerView is the text input plus the staged-attachment chip row.
type ComposerView struct {
	*tview.Flex
	Input *tview.InputField
	chips *tview.TextView

	onChanged func(text string)
	onSubmit  func(text string)
}

// NewComposerView creates the composer.
func NewComposerView() *ComposerView {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	chips := tview.NewTextView().SetDynamicColors(true)

	cv := &ComposerView{
		Flex:  tview.NewFlex().SetDirection(tview.FlexRow),
		Input: input,
		chips: chips,
	}
	cv.AddItem(chips, 1, 0, false)
	cv.AddItem(input, 1, 0, true)

	input.SetChangedFunc(func(text string) {
		if cv.onChanged != nil {
			cv.onChanged(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && cv.onSubmit != nil {
			cv.onSubmit(input.GetText())
		}
	})

	return cv
}

// SetOnChanged sets the callback for every keystroke.
func (cv *ComposerView) SetOnChanged(fn func(text string)) {
	cv.onChanged = fn
}

// SetOnSubmit sets the callback for Enter.
func (cv *ComposerView) SetOnSubmit(fn func(text string)) {
	cv.onSubmit = fn
}

// SetText replaces the input text (trigger replacement, draft restore).
func (cv *ComposerView) SetText(text string) {
	cv.Input.SetText(text)
}

// Text returns the current input text.
func (cv *ComposerView) Text() string {
	return cv.Input.GetText()
}

// UpdateChips re-renders the staged attachment row.
func (cv *ComposerView) UpdateChips(refs []reftoken.Ref) {
	cv.chips.Clear()
	if len(refs) == 0 {
		return
	}
	parts := make([]string, 0, len(refs))
	for i, r := range refs {
		parts = append(parts, fmt.Sprintf("[green][%d: %s %s][-]", i+1, r.Type, tview.Escape(r.Name)))
	}
	_, _ = fmt.Fprint(cv.chips, " "+strings.Join(parts, " "))
}
