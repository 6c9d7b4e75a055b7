// Package receipts issues read acknowledgements and reacts to read
// events from the push channel.
package receipts

import (
	"context"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/cache"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"go.uber.org/zap"
)

// Store is the slice of the cache the tracker drives.
type Store interface {
	OpenID() int64
	Messages() []api.Message
	RefreshMessages(ctx context.Context)
	MarkRead(ctx context.Context, conversationID int64)
}

// Joiner scopes the push channel to the opened conversation.
type Joiner interface {
	JoinConversation(conversationID int64)
}

// Tracker acknowledges reads. Mark-read is fire-and-forget: it is a
// side effect of opening a conversation, so failures stay silent and
// the next refresh retries naturally.
type Tracker struct {
	bus    *bus.Bus
	store  Store
	joiner Joiner
	logger *zap.Logger
	selfID int64

	cancel context.CancelFunc
}

// New creates a tracker for the signed-in user.
func New(b *bus.Bus, store Store, joiner Joiner, selfID int64, logger *zap.Logger) *Tracker {
	return &Tracker{
		bus:    b,
		store:  store,
		joiner: joiner,
		logger: logger,
		selfID: selfID,
	}
}

// Start subscribes to selection, refresh and read events.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	ch, unsub := t.bus.Subscribe(256,
		bus.ConversationSelected, bus.MessagesUpdated, bus.PushMessageRead)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				t.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the event loop.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tracker) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.ConversationSelected:
		payload, ok := evt.Payload.(cache.SelectedPayload)
		if !ok {
			return
		}
		t.logger.Debug("acknowledging opened conversation", zap.Int64("conversation", payload.ConversationID))
		t.joiner.JoinConversation(payload.ConversationID)
		t.store.MarkRead(ctx, payload.ConversationID)

	case bus.MessagesUpdated:
		payload, ok := evt.Payload.(cache.MessagesPayload)
		if !ok {
			return
		}
		if t.hasUnreadInbound() {
			t.logger.Debug("re-acknowledging unread inbound messages", zap.Int64("conversation", payload.ConversationID))
			t.store.MarkRead(ctx, payload.ConversationID)
		}

	case bus.PushMessageRead:
		frame, ok := evt.Payload.(*push.ReadFrame)
		if !ok {
			return
		}
		// Do not wait for the next poll cycle.
		if frame.ConversationID == t.store.OpenID() {
			t.store.RefreshMessages(ctx)
		}
	}
}

// hasUnreadInbound reports whether the open conversation holds a
// message from someone else that is not yet read.
func (t *Tracker) hasUnreadInbound() bool {
	for _, m := range t.store.Messages() {
		if m.SenderID != t.selfID && api.DeliveryRank(m.Status) < api.DeliveryRank(api.StatusRead) {
			return true
		}
	}
	return false
}
