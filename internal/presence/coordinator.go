// Package presence derives ephemeral online/typing state from push
// events and debounces local keystroke signals into typing frames.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"go.uber.org/zap"
)

// DefaultIdle is the keystroke idle window before typing stops.
const DefaultIdle = 2 * time.Second

// TypingSender emits outbound typing frames (the push manager).
type TypingSender interface {
	SendTyping(conversationID int64, isTyping bool)
}

// ConversationPatcher applies ephemeral patches (the cache).
type ConversationPatcher interface {
	OpenID() int64
	SetTyping(conversationID int64, typing bool)
	SetUserPresence(userID int64, online bool)
}

// Coordinator owns the typing-idle timer family: one timer per
// conversation the user is actively typing in, reset on every
// keystroke.
type Coordinator struct {
	bus    *bus.Bus
	sender TypingSender
	cache  ConversationPatcher
	logger *zap.Logger
	idle   time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
	cancel context.CancelFunc
}

// New creates a coordinator with the given idle window (0 uses
// DefaultIdle).
func New(b *bus.Bus, sender TypingSender, cache ConversationPatcher, idle time.Duration, logger *zap.Logger) *Coordinator {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Coordinator{
		bus:    b,
		sender: sender,
		cache:  cache,
		logger: logger,
		idle:   idle,
		timers: make(map[int64]*time.Timer),
	}
}

// Start subscribes to inbound typing and presence events.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	ch, unsub := c.bus.Subscribe(256,
		bus.PushTyping, bus.PushUserOnline, bus.PushUserOffline)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the event loop and all pending idle timers.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// NotifyTyping is called on every composition-input change. The first
// call emits typing:true immediately; every call resets the idle timer;
// when the timer fires, typing:false goes out.
func (c *Coordinator) NotifyTyping(conversationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[conversationID]; ok {
		t.Reset(c.idle)
		return
	}

	c.sender.SendTyping(conversationID, true)
	c.timers[conversationID] = time.AfterFunc(c.idle, func() {
		c.mu.Lock()
		delete(c.timers, conversationID)
		c.mu.Unlock()
		c.sender.SendTyping(conversationID, false)
	})
}

func (c *Coordinator) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.PushTyping:
		frame, ok := evt.Payload.(*push.TypingFrame)
		if !ok {
			return
		}
		// Stale events for a deselected conversation are dropped at
		// delivery time, not buffered.
		if frame.ConversationID != c.cache.OpenID() {
			return
		}
		c.cache.SetTyping(frame.ConversationID, frame.IsTyping)
	case bus.PushUserOnline, bus.PushUserOffline:
		frame, ok := evt.Payload.(*push.PresenceFrame)
		if !ok {
			return
		}
		c.cache.SetUserPresence(frame.UserID, evt.Kind == bus.PushUserOnline)
	}
}
