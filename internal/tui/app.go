// Package tui implements the terminal console shell on tview.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/cache"
	"github.com/freddiequinson/kountryeye-console/internal/compose"
	"github.com/freddiequinson/kountryeye-console/internal/connstate"
	"github.com/freddiequinson/kountryeye-console/internal/drafts"
	"github.com/freddiequinson/kountryeye-console/internal/presence"
	"github.com/freddiequinson/kountryeye-console/internal/reftoken"
	"github.com/freddiequinson/kountryeye-console/internal/tui/views"
)

const flashDuration = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	bus    *bus.Bus
	cache  *cache.Cache
	comp   *compose.Composer
	coord  *presence.Coordinator
	drafts *drafts.Store
	client *api.Client
	logger *zap.Logger
	flash  *Flash

	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.Thread
	composer  *views.ComposerView
	dropdown  *views.Dropdown
	picker    *views.Picker
	detail    *views.Detail

	threadFlex *tview.Flex
	filter     *tview.InputField

	ctx        context.Context
	cancel     context.CancelFunc
	gaveUp     bool
	detailRef  *reftoken.Ref
	threadRefs []reftoken.Ref // references in the rendered thread, for the detail dialog

	cardMu      sync.Mutex
	cardDetails map[string]*api.EntityDetail
}

// NewApp creates the TUI application.
func NewApp(b *bus.Bus, c *cache.Cache, comp *compose.Composer, coord *presence.Coordinator, ds *drafts.Store, client *api.Client, profileName string, selfID int64, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		bus:         b,
		cache:       c,
		comp:        comp,
		coord:       coord,
		drafts:      ds,
		client:      client,
		logger:      logger,
		flash:       &Flash{},
		statusBar:   views.NewStatusBar(),
		convList:    views.NewConversationList(),
		composer:    views.NewComposerView(),
		dropdown:    views.NewDropdown(),
		picker:      views.NewPicker(),
		detail:      views.NewDetail(),
		ctx:         ctx,
		cancel:      cancel,
		cardDetails: map[string]*api.EntityDetail{},
	}
	a.thread = views.NewThread(selfID, a.cardDetail)

	a.statusBar.SetProfile(profileName)
	a.setupLayout()
	a.setupCallbacks()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if conv := a.convList.Selected(); conv != nil {
			a.openConversation(*conv)
		}
	})

	a.composer.SetOnChanged(func(text string) {
		openID := a.cache.OpenID()
		if openID != 0 && text != "" {
			a.coord.NotifyTyping(openID)
		}
		state := a.comp.SetInput(text, len(text))
		a.updateDropdown(state)
	})

	a.composer.SetOnSubmit(func(text string) {
		a.submit(text)
	})

	// Backspace on an empty input drops the last staged attachment.
	a.composer.Input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if (event.Key() == tcell.KeyBackspace || event.Key() == tcell.KeyBackspace2) &&
			a.composer.Text() == "" {
			staged := a.comp.Staged()
			if n := len(staged); n > 0 {
				a.comp.RemoveStaged(n - 1)
				a.composer.UpdateChips(a.comp.Staged())
				return nil
			}
		}
		return event
	})

	a.filter.SetChangedFunc(func(text string) {
		a.convList.SetFilter(text)
		a.convList.Update(a.cache.Conversations())
	})
	a.filter.SetDoneFunc(func(key tcell.Key) {
		a.app.SetFocus(a.convList)
	})
}

func (a *App) setupLayout() {
	a.filter = tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)

	listFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filter, 1, 0, false)

	a.threadFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.dropdown, 0, 0, false).
		AddItem(a.composer, 2, 0, true)

	a.pages.AddPage("list", listFlex, true, true)
	a.pages.AddPage("thread", a.threadFlex, true, false)
	a.pages.AddPage("picker", center(a.picker, 60, 16), true, false)
	a.pages.AddPage("detail", center(a.detail, 60, 16), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

// center wraps a primitive in a fixed-size centered frame.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case "thread":
			if a.dropdownVisible() {
				a.hideDropdown()
				a.app.SetFocus(a.composer.Input)
				return nil
			}
			a.leaveConversation()
			return nil
		case "picker", "detail":
			a.closeOverlay()
			return nil
		}
	}

	// Let text input widgets handle all other keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if event.Key() != tcell.KeyRune {
		return event
	}

	switch currentPage {
	case "list":
		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case '/':
			a.app.SetFocus(a.filter)
			return nil
		case 'n':
			a.showUserDirectory()
			return nil
		}
	case "thread":
		switch event.Rune() {
		case 'i':
			a.app.SetFocus(a.composer.Input)
			return nil
		case 'o':
			a.showThreadRefs()
			return nil
		}
	case "detail":
		// A referenced staff user can be messaged straight from the
		// preview dialog.
		if event.Rune() == 'm' && a.detailRef != nil && a.detailRef.Type == reftoken.User {
			ref := *a.detailRef
			a.closeOverlay()
			a.startConversation(api.User{ID: ref.ID, Name: ref.Name})
			return nil
		}
	}

	return event
}

// openConversation switches the cache selection, restores the draft and
// shows the thread page.
func (a *App) openConversation(conv api.Conversation) {
	a.saveDraft()

	a.cache.Select(conv.ID)
	a.thread.SetConversation(conv.Name)
	a.thread.SetTyping(false)
	a.thread.Update(nil)

	a.comp.Clear()
	if d, err := a.drafts.Load(conv.ID); err == nil && d != nil {
		a.comp.SetInput(d.Body, len(d.Body))
		a.comp.SetStaged(d.Attachments)
		a.composer.SetText(d.Body)
	} else {
		a.composer.SetText("")
	}
	a.composer.UpdateChips(a.comp.Staged())

	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.composer.Input)
}

// leaveConversation saves the draft and returns to the list.
func (a *App) leaveConversation() {
	a.saveDraft()
	a.hideDropdown()
	a.pages.SwitchToPage("list")
	a.app.SetFocus(a.convList)
}

func (a *App) saveDraft() {
	openID := a.cache.OpenID()
	if openID == 0 {
		return
	}
	err := a.drafts.Save(drafts.Draft{
		ConversationID: openID,
		Body:           a.composer.Text(),
		Attachments:    a.comp.Staged(),
	})
	if err != nil {
		a.logger.Warn("draft save failed", zap.Error(err))
	}
}

// submit handles Enter in the composer: the /gif command opens the
// picker, anything else goes out as a message.
func (a *App) submit(text string) {
	if a.dropdownVisible() {
		// Enter belongs to the dropdown while it is open.
		a.app.SetFocus(a.dropdown)
		return
	}

	if compose.IsGifCommand(text) || strings.HasPrefix(strings.TrimSpace(text), compose.GifCommand+" ") {
		query := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), compose.GifCommand))
		a.composer.SetText("")
		a.comp.SetInput("", 0)
		a.showGifPicker(query)
		return
	}

	content, messageType, ok := a.comp.BuildOutgoing()
	if !ok {
		return
	}
	openID := a.cache.OpenID()
	if openID == 0 {
		return
	}

	go func() {
		if err := a.cache.Send(a.ctx, content, messageType, nil); err != nil {
			// Input stays intact for retry.
			a.flash.Set("Send failed: "+err.Error(), flashDuration)
			a.queueStatusRefresh()
			return
		}
		a.comp.Clear()
		if err := a.drafts.Delete(openID); err != nil {
			a.logger.Warn("draft delete failed", zap.Error(err))
		}
		a.app.QueueUpdateDraw(func() {
			a.composer.SetText("")
			a.composer.UpdateChips(nil)
		})
	}()
}

// updateDropdown drives the mention dropdown from the trigger state.
func (a *App) updateDropdown(state compose.MentionState) {
	switch state.Phase {
	case compose.PhaseTypeSelecting:
		a.dropdown.ShowTypes(compose.TypeOptions(), func(opt compose.TypeOption) {
			text, cursor := a.comp.SelectType(opt)
			a.composer.SetText(text)
			a.app.SetFocus(a.composer.Input)
			a.updateDropdown(a.comp.SetInput(text, cursor))
		})
		a.showDropdown(len(compose.TypeOptions()))

	case compose.PhaseSearching:
		go func() {
			hits, err := a.comp.Search(a.ctx)
			if err != nil {
				a.flash.Set("Search failed: "+err.Error(), flashDuration)
				a.queueStatusRefresh()
				return
			}
			a.app.QueueUpdateDraw(func() {
				// The trigger may have closed while the search ran.
				if a.comp.State().Phase != compose.PhaseSearching {
					return
				}
				a.dropdown.ShowHits(state.Type, hits, func(hit api.EntityHit) {
					text, _ := a.comp.SelectHit(hit)
					a.composer.SetText(text)
					a.composer.UpdateChips(a.comp.Staged())
					a.hideDropdown()
					a.app.SetFocus(a.composer.Input)
				})
				a.showDropdown(len(hits))
			})
		}()

	default:
		a.hideDropdown()
	}
}

func (a *App) showDropdown(items int) {
	height := items*2 + 2
	if height > 12 {
		height = 12
	}
	if height < 3 {
		height = 3
	}
	a.threadFlex.ResizeItem(a.dropdown, height, 0)
}

func (a *App) hideDropdown() {
	a.threadFlex.ResizeItem(a.dropdown, 0, 0)
}

func (a *App) dropdownVisible() bool {
	_, _, _, h := a.dropdown.GetRect()
	return h > 0
}

// showGifPicker searches the gif proxy and lets the user send a result.
func (a *App) showGifPicker(query string) {
	go func() {
		gifs, err := a.client.SearchGifs(a.ctx, query)
		if err != nil {
			a.flash.Set("Gif search failed: "+err.Error(), flashDuration)
			a.queueStatusRefresh()
			return
		}
		a.app.QueueUpdateDraw(func() {
			if len(gifs) == 0 {
				a.picker.ShowEmpty("Gifs")
			} else {
				a.picker.ShowGifs(gifs, func(g api.Gif) {
					a.closeOverlay()
					a.sendGif(g)
				})
			}
			a.pages.ShowPage("picker")
			a.app.SetFocus(a.picker)
		})
	}()
}

func (a *App) sendGif(g api.Gif) {
	go func() {
		content := fmt.Sprintf("[gif:%s]", g.URL)
		if err := a.cache.Send(a.ctx, content, "gif", nil); err != nil {
			a.flash.Set("Send failed: "+err.Error(), flashDuration)
			a.queueStatusRefresh()
			return
		}
		a.comp.Clear()
		a.app.QueueUpdateDraw(func() {
			a.composer.SetText("")
			a.composer.UpdateChips(nil)
		})
	}()
}

// showUserDirectory opens the messageable-user picker to start a new
// conversation.
func (a *App) showUserDirectory() {
	go func() {
		a.cache.RefreshUsers(a.ctx)
		users := a.cache.Users()
		a.app.QueueUpdateDraw(func() {
			if len(users) == 0 {
				a.picker.ShowEmpty("New conversation")
			} else {
				a.picker.ShowUsers(users, func(u api.User) {
					a.closeOverlay()
					a.startConversation(u)
				})
			}
			a.pages.ShowPage("picker")
			a.app.SetFocus(a.picker)
		})
	}()
}

func (a *App) startConversation(u api.User) {
	go func() {
		conv, err := a.cache.CreateConversation(a.ctx, u.ID)
		if err != nil {
			a.flash.Set("Create failed: "+err.Error(), flashDuration)
			a.queueStatusRefresh()
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.openConversation(*conv)
		})
	}()
}

// showThreadRefs lists the entity references in the open thread; picking
// one opens the detail dialog.
func (a *App) showThreadRefs() {
	a.threadRefs = a.threadRefs[:0]
	for _, m := range a.cache.Messages() {
		a.threadRefs = append(a.threadRefs, reftoken.Decode(m.Content)...)
	}
	if len(a.threadRefs) == 0 {
		a.flash.Set("No references in this thread", flashDuration)
		a.statusBar.SetFlash(a.flash.Get())
		return
	}

	refs := append([]reftoken.Ref(nil), a.threadRefs...)
	a.picker.ShowRefs(refs, func(r reftoken.Ref) {
		a.closeOverlay()
		a.openDetail(r)
	})
	a.pages.ShowPage("picker")
	a.app.SetFocus(a.picker)
}

// openDetail fetches and shows the preview dialog for a reference.
func (a *App) openDetail(ref reftoken.Ref) {
	a.detailRef = &ref
	go func() {
		detail, err := a.client.EntityDetail(a.ctx, ref.Type+"s", ref.ID)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.detail.UpdateError(ref, err)
			} else {
				a.detail.Update(ref, detail)
			}
			a.pages.ShowPage("detail")
			a.app.SetFocus(a.detail)
		})
	}()
}

func (a *App) closeOverlay() {
	a.pages.HidePage("picker")
	a.pages.HidePage("detail")
	if a.cache.OpenID() != 0 {
		a.pages.SwitchToPage("thread")
		a.app.SetFocus(a.composer.Input)
	} else {
		a.pages.SwitchToPage("list")
		a.app.SetFocus(a.convList)
	}
}

// queueStatusRefresh repaints the status bar from outside the UI thread.
func (a *App) queueStatusRefresh() {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(a.flash.Get())
	})
}

// Run starts the event loop and blocks until quit.
func (a *App) Run() error {
	go a.eventLoop()
	go func() {
		a.cache.RefreshConversations(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.cache.Conversations())
		})
	}()
	return a.app.Run()
}

// eventLoop repaints the UI on cache and connection events.
func (a *App) eventLoop() {
	ch, unsub := a.bus.Subscribe(256,
		bus.ConversationsUpdated, bus.MessagesUpdated, bus.UsersUpdated,
		bus.ConnStateChanged, bus.ConnGaveUp, bus.Notice)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.ConversationsUpdated:
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.cache.Conversations())
			a.refreshTypingIndicator()
			a.statusBar.SetFlash(a.flash.Get())
		})

	case bus.MessagesUpdated:
		msgs := a.cache.Messages()
		a.prefetchCardDetails(msgs)
		a.app.QueueUpdateDraw(func() {
			a.thread.Update(msgs)
			a.statusBar.SetFlash(a.flash.Get())
		})

	case bus.UsersUpdated:
		// Directory picker pulls on open; nothing to repaint live.

	case bus.ConnStateChanged:
		change, ok := evt.Payload.(connstate.StatusChange)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			switch change.To {
			case connstate.Open:
				a.gaveUp = false
				a.statusBar.SetMode("live")
			case connstate.Connecting:
				a.statusBar.SetMode("reconnecting")
			case connstate.Closed:
				if !a.gaveUp {
					a.statusBar.SetMode("reconnecting")
				}
			}
		})

	case bus.ConnGaveUp:
		a.gaveUp = true
		a.flash.Set("Live updates unavailable, polling only", flashDuration)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetMode("polling")
			a.statusBar.SetFlash(a.flash.Get())
		})

	case bus.Notice:
		if msg, ok := evt.Payload.(string); ok {
			a.flash.Set(msg, flashDuration)
			a.queueStatusRefresh()
		}
	}
}

// cardDetail returns the cached entity detail behind a rich card, nil
// if it has not been fetched yet.
func (a *App) cardDetail(ref reftoken.Ref) *api.EntityDetail {
	a.cardMu.Lock()
	defer a.cardMu.Unlock()
	return a.cardDetails[cardKey(ref)]
}

// prefetchCardDetails fetches the summary behind each card-only message
// not already cached, then repaints the thread once something landed.
// Failed fetches are left uncached so the next refresh retries; the
// card falls back to type, id and embedded name in the meantime.
func (a *App) prefetchCardDetails(msgs []api.Message) {
	var missing []reftoken.Ref
	a.cardMu.Lock()
	for _, m := range msgs {
		card, ok := reftoken.SingleCard(m.Content)
		if !ok || card.Type == reftoken.User {
			continue
		}
		if _, cached := a.cardDetails[cardKey(*card)]; !cached {
			a.cardDetails[cardKey(*card)] = nil
			missing = append(missing, *card)
		}
	}
	a.cardMu.Unlock()
	if len(missing) == 0 {
		return
	}

	go func() {
		fetched := false
		for _, ref := range missing {
			detail, err := a.client.EntityDetail(a.ctx, ref.Type+"s", ref.ID)
			a.cardMu.Lock()
			if err != nil {
				delete(a.cardDetails, cardKey(ref))
			} else {
				a.cardDetails[cardKey(ref)] = detail
				fetched = true
			}
			a.cardMu.Unlock()
		}
		if !fetched {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.Update(a.cache.Messages())
		})
	}()
}

func cardKey(ref reftoken.Ref) string {
	return fmt.Sprintf("%s:%d", ref.Type, ref.ID)
}

// refreshTypingIndicator mirrors the open conversation's typing flag
// into the thread title.
func (a *App) refreshTypingIndicator() {
	openID := a.cache.OpenID()
	if openID == 0 {
		return
	}
	for _, c := range a.cache.Conversations() {
		if c.ID == openID {
			a.thread.SetTyping(c.OtherUserTyping)
			return
		}
	}
}

// Stop saves the open draft and shuts the TUI down.
func (a *App) Stop() {
	a.saveDraft()
	a.cancel()
	a.app.Stop()
}
