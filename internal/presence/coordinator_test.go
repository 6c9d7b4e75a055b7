package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"go.uber.org/zap"
)

type recordedFrame struct {
	conversationID int64
	isTyping       bool
}

type fakeSender struct {
	mu     sync.Mutex
	frames []recordedFrame
}

func (f *fakeSender) SendTyping(conversationID int64, isTyping bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, recordedFrame{conversationID, isTyping})
}

func (f *fakeSender) snapshot() []recordedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedFrame(nil), f.frames...)
}

type fakePatcher struct {
	mu       sync.Mutex
	openID   int64
	typing   map[int64]bool
	presence map[int64]bool
}

func newFakePatcher(openID int64) *fakePatcher {
	return &fakePatcher{
		openID:   openID,
		typing:   make(map[int64]bool),
		presence: make(map[int64]bool),
	}
}

func (f *fakePatcher) OpenID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openID
}

func (f *fakePatcher) SetTyping(id int64, typing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing[id] = typing
}

func (f *fakePatcher) SetUserPresence(id int64, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[id] = online
}

func TestTypingDebounce(t *testing.T) {
	sender := &fakeSender{}
	c := New(bus.New(), sender, newFakePatcher(1), 50*time.Millisecond, zap.NewNop())

	// A burst of keystrokes closer together than the idle window.
	for i := 0; i < 5; i++ {
		c.NotifyTyping(1)
		time.Sleep(10 * time.Millisecond)
	}

	// Exactly one typing:true so far.
	frames := sender.snapshot()
	if len(frames) != 1 || !frames[0].isTyping {
		t.Fatalf("frames during burst = %+v, want single typing:true", frames)
	}

	// After the idle window, exactly one typing:false.
	time.Sleep(120 * time.Millisecond)
	frames = sender.snapshot()
	if len(frames) != 2 {
		t.Fatalf("frames after idle = %+v, want exactly two", frames)
	}
	if frames[1].isTyping || frames[1].conversationID != 1 {
		t.Errorf("final frame = %+v, want typing:false for conversation 1", frames[1])
	}
}

func TestTypingRestartsAfterIdle(t *testing.T) {
	sender := &fakeSender{}
	c := New(bus.New(), sender, newFakePatcher(1), 30*time.Millisecond, zap.NewNop())

	c.NotifyTyping(1)
	time.Sleep(80 * time.Millisecond)
	c.NotifyTyping(1)
	time.Sleep(80 * time.Millisecond)

	frames := sender.snapshot()
	want := []recordedFrame{{1, true}, {1, false}, {1, true}, {1, false}}
	if len(frames) != len(want) {
		t.Fatalf("frames = %+v, want %+v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame[%d] = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

func TestStopCancelsIdleTimers(t *testing.T) {
	sender := &fakeSender{}
	c := New(bus.New(), sender, newFakePatcher(1), 30*time.Millisecond, zap.NewNop())

	c.NotifyTyping(1)
	c.Stop()
	time.Sleep(80 * time.Millisecond)

	frames := sender.snapshot()
	if len(frames) != 1 {
		t.Errorf("frames after Stop = %+v, want only the initial typing:true", frames)
	}
}

func TestInboundTypingFiltered(t *testing.T) {
	b := bus.New()
	patcher := newFakePatcher(1)
	c := New(b, &fakeSender{}, patcher, 0, zap.NewNop())
	c.Start(context.Background())
	defer c.Stop()

	// Event for a deselected conversation: dropped.
	b.Publish(bus.Event{Kind: bus.PushTyping, Payload: &push.TypingFrame{ConversationID: 9, IsTyping: true}})
	// Event for the open conversation: applied.
	b.Publish(bus.Event{Kind: bus.PushTyping, Payload: &push.TypingFrame{ConversationID: 1, IsTyping: true}})

	deadline := time.After(time.Second)
	for {
		patcher.mu.Lock()
		applied := patcher.typing[1]
		stale := patcher.typing[9]
		patcher.mu.Unlock()
		if stale {
			t.Fatal("typing applied to a deselected conversation")
		}
		if applied {
			return
		}
		select {
		case <-deadline:
			t.Fatal("typing not applied to the open conversation")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestInboundPresencePatches(t *testing.T) {
	b := bus.New()
	patcher := newFakePatcher(1)
	c := New(b, &fakeSender{}, patcher, 0, zap.NewNop())
	c.Start(context.Background())
	defer c.Stop()

	b.Publish(bus.Event{Kind: bus.PushUserOnline, Payload: &push.PresenceFrame{UserID: 4}})
	b.Publish(bus.Event{Kind: bus.PushUserOffline, Payload: &push.PresenceFrame{UserID: 5}})

	deadline := time.After(time.Second)
	for {
		patcher.mu.Lock()
		on, onOK := patcher.presence[4]
		off, offOK := patcher.presence[5]
		patcher.mu.Unlock()
		if onOK && offOK {
			if !on || off {
				t.Errorf("presence = online:%v offline:%v, want true/false", on, off)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("presence events not applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
