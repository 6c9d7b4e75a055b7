// Package cache holds the working set of conversations and the
// messages of the open conversation. A periodic pull is the baseline;
// push events only accelerate it by forcing an out-of-cycle pull
// through the same invalidate-and-refetch path, so duplicate refreshes
// are idempotent by construction.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"go.uber.org/zap"
)

// MessagesPayload announces a message-list refresh on the bus.
type MessagesPayload struct {
	ConversationID int64
}

// SelectedPayload announces a conversation switch on the bus.
type SelectedPayload struct {
	ConversationID int64
}

// Cache is the single consistency path between the REST backend and
// everything the console displays. Sent messages are never inserted
// locally: Send blocks until the server acknowledges, then re-pulls,
// keeping the server the only source of message ids.
type Cache struct {
	api    *api.Client
	bus    *bus.Bus
	logger *zap.Logger
	selfID int64

	convInterval time.Duration
	msgInterval  time.Duration

	mu            sync.RWMutex
	conversations []api.Conversation
	users         []api.User
	usersStale    bool
	openID        int64
	messages      []api.Message

	kick   chan struct{}
	cancel context.CancelFunc
}

// New creates a cache polling at the given intervals.
func New(client *api.Client, b *bus.Bus, selfID int64, convInterval, msgInterval time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		api:          client,
		bus:          b,
		logger:       logger,
		selfID:       selfID,
		convInterval: convInterval,
		msgInterval:  msgInterval,
		usersStale:   true,
		kick:         make(chan struct{}, 1),
	}
}

// Start launches the poll loops and subscribes to push invalidation.
func (c *Cache) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	go c.pollConversations(ctx)
	go c.pollMessages(ctx)

	ch, unsub := c.bus.Subscribe(256,
		bus.PushNewMessage, bus.PushNotification, bus.ConnOpened)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the poll loops.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Cache) pollConversations(ctx context.Context) {
	ticker := time.NewTicker(c.convInterval)
	defer ticker.Stop()

	c.RefreshConversations(ctx)
	for {
		select {
		case <-ticker.C:
			c.RefreshConversations(ctx)
			if c.isUsersStale() {
				c.RefreshUsers(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// pollMessages polls the open conversation. A conversation switch kicks
// an immediate pull and restarts the cycle at the new id.
func (c *Cache) pollMessages(ctx context.Context) {
	ticker := time.NewTicker(c.msgInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RefreshMessages(ctx)
		case <-c.kick:
			ticker.Reset(c.msgInterval)
			c.RefreshMessages(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Cache) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.PushNewMessage:
		frame, ok := evt.Payload.(*push.NewMessageFrame)
		if !ok {
			return
		}
		c.RefreshConversations(ctx)
		if frame.ConversationID == c.OpenID() {
			c.RefreshMessages(ctx)
		}
	case bus.PushNotification:
		c.RefreshConversations(ctx)
	case bus.ConnOpened:
		// Reconcile presence that drifted while disconnected.
		c.RefreshConversations(ctx)
		c.RefreshUsers(ctx)
	}
}

// Select switches the open conversation, forcing an immediate message
// pull. The previous conversation's events are not unsubscribed; they
// are filtered against the current selection at delivery time.
func (c *Cache) Select(conversationID int64) {
	c.mu.Lock()
	c.openID = conversationID
	c.messages = nil
	c.mu.Unlock()

	c.bus.Publish(bus.Event{
		Kind:    bus.ConversationSelected,
		Payload: SelectedPayload{ConversationID: conversationID},
	})

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// OpenID returns the currently selected conversation id, 0 for none.
func (c *Cache) OpenID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.openID
}

// Conversations returns a copy of the cached conversation list.
func (c *Cache) Conversations() []api.Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.Conversation(nil), c.conversations...)
}

// Messages returns a copy of the open conversation's messages.
func (c *Cache) Messages() []api.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.Message(nil), c.messages...)
}

// RefreshConversations re-pulls the conversation list. Ephemeral typing
// flags survive the pull; everything else is replaced by the server's
// view.
func (c *Cache) RefreshConversations(ctx context.Context) {
	convs, err := c.api.ListConversations(ctx)
	if err != nil {
		c.logger.Warn("conversation pull failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	typing := make(map[int64]bool, len(c.conversations))
	for _, old := range c.conversations {
		if old.OtherUserTyping {
			typing[old.ID] = true
		}
	}
	for i := range convs {
		convs[i].OtherUserTyping = typing[convs[i].ID]
	}
	c.conversations = convs
	c.mu.Unlock()

	c.bus.Publish(bus.Event{Kind: bus.ConversationsUpdated})
}

// RefreshMessages re-pulls the open conversation's messages. Delivery
// states never move backwards: a stale pull racing a read receipt keeps
// the higher state.
func (c *Cache) RefreshMessages(ctx context.Context) {
	id := c.OpenID()
	if id == 0 {
		return
	}

	msgs, err := c.api.ListMessages(ctx, id)
	if err != nil {
		c.logger.Warn("message pull failed", zap.Error(err), zap.Int64("conversation", id))
		return
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	c.mu.Lock()
	if c.openID != id {
		// Selection moved while the pull was in flight.
		c.mu.Unlock()
		return
	}
	prev := make(map[int64]string, len(c.messages))
	for _, m := range c.messages {
		prev[m.ID] = m.Status
	}
	for i := range msgs {
		if old, ok := prev[msgs[i].ID]; ok && api.DeliveryRank(old) > api.DeliveryRank(msgs[i].Status) {
			msgs[i].Status = old
		}
	}
	c.messages = msgs
	c.mu.Unlock()

	c.bus.Publish(bus.Event{
		Kind:    bus.MessagesUpdated,
		Payload: MessagesPayload{ConversationID: id},
	})
}

// RefreshUsers re-pulls the messageable-users directory.
func (c *Cache) RefreshUsers(ctx context.Context) {
	users, err := c.api.MessageableUsers(ctx, "")
	if err != nil {
		c.logger.Warn("user directory pull failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.users = users
	c.usersStale = false
	c.mu.Unlock()

	c.bus.Publish(bus.Event{Kind: bus.UsersUpdated})
}

// Users returns the cached user directory.
func (c *Cache) Users() []api.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.User(nil), c.users...)
}

// MarkUsersStale schedules a directory re-pull on the next poll tick.
func (c *Cache) MarkUsersStale() {
	c.mu.Lock()
	c.usersStale = true
	c.mu.Unlock()
}

func (c *Cache) isUsersStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usersStale
}

// Send posts a message to the open conversation and blocks until the
// server acknowledges, then re-pulls. On error nothing local changes,
// so the caller can preserve the draft for retry.
func (c *Cache) Send(ctx context.Context, content, messageType string, replyTo *int64) error {
	id := c.OpenID()
	if id == 0 {
		return nil
	}
	if _, err := c.api.SendMessage(ctx, id, content, messageType, replyTo); err != nil {
		return err
	}
	c.RefreshMessages(ctx)
	c.RefreshConversations(ctx)
	return nil
}

// MarkRead acknowledges a conversation. Failures are swallowed: this is
// a side effect, not a user-initiated action. The unread counter only
// drops on a successful acknowledgement, never by local inference.
func (c *Cache) MarkRead(ctx context.Context, conversationID int64) {
	if err := c.api.MarkRead(ctx, conversationID); err != nil {
		c.logger.Debug("mark-read failed", zap.Error(err), zap.Int64("conversation", conversationID))
		return
	}

	c.mu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].UnreadCount = 0
		}
	}
	c.mu.Unlock()

	c.bus.Publish(bus.Event{Kind: bus.ConversationsUpdated})
}

// SetTyping patches the typing flag of the open conversation. Events
// for other conversations are dropped, not buffered.
func (c *Cache) SetTyping(conversationID int64, typing bool) {
	c.mu.Lock()
	if conversationID != c.openID {
		c.mu.Unlock()
		return
	}
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].OtherUserTyping = typing
		}
	}
	c.mu.Unlock()

	c.bus.Publish(bus.Event{Kind: bus.ConversationsUpdated})
}

// SetUserPresence patches the online flag of every 1:1 conversation
// with the user and marks the lists stale so the next pull reconciles.
func (c *Cache) SetUserPresence(userID int64, online bool) {
	c.mu.Lock()
	for i := range c.conversations {
		if c.conversations[i].OtherUserID == userID {
			c.conversations[i].OtherUserOnline = online
		}
	}
	for i := range c.users {
		if c.users[i].ID == userID {
			c.users[i].IsOnline = online
		}
	}
	c.usersStale = true
	c.mu.Unlock()

	c.bus.Publish(bus.Event{Kind: bus.ConversationsUpdated})
}

// CreateConversation opens a 1:1 conversation with a staff user and
// re-pulls the list.
func (c *Cache) CreateConversation(ctx context.Context, userID int64) (*api.Conversation, error) {
	conv, err := c.api.CreateConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.RefreshConversations(ctx)
	return conv, nil
}
