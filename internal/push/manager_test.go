package push

import (
	"testing"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/connstate"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger { return zap.NewNop() }

func TestReconnectDelaySequence(t *testing.T) {
	want := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
	}
	for i, w := range want {
		attempt := i + 1
		if got := ReconnectDelay(attempt); got != w {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestNoSixthAttempt(t *testing.T) {
	b := bus.New()
	machine := connstate.NewMachine(b)
	m := NewManager("ws://localhost:1", 1, b, machine, testLogger())

	gaveUp, unsub := b.Subscribe(1, bus.ConnGaveUp)
	defer unsub()

	// Exhaust the attempt budget, then one more drop.
	for i := 0; i < connstate.MaxAttempts; i++ {
		machine.NextAttempt()
	}
	m.scheduleReconnect()

	select {
	case <-gaveUp:
	case <-time.After(time.Second):
		t.Fatal("expected give-up event after attempt cap")
	}

	m.mu.Lock()
	timer := m.timer
	m.mu.Unlock()
	if timer != nil {
		t.Error("reconnect timer scheduled past the attempt cap")
	}
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	b := bus.New()
	machine := connstate.NewMachine(b)
	m := NewManager("ws://localhost:1", 1, b, machine, testLogger())

	m.scheduleReconnect()
	m.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		t.Error("manager not marked stopped after Close")
	}
	if m.timer != nil {
		t.Error("pending reconnect timer survived Close")
	}
}

func TestDecodeFrameKnownKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind bus.Kind
	}{
		{`{"type":"new_message","conversation_id":4}`, bus.PushNewMessage},
		{`{"type":"typing","conversation_id":4,"user_id":2,"is_typing":true}`, bus.PushTyping},
		{`{"type":"notification","title":"t"}`, bus.PushNotification},
		{`{"type":"user_online","user_id":9}`, bus.PushUserOnline},
		{`{"type":"user_offline","user_id":9}`, bus.PushUserOffline},
		{`{"type":"message_read","conversation_id":4,"reader_id":2}`, bus.PushMessageRead},
	}
	for _, tc := range cases {
		evt, ok, err := decodeFrame([]byte(tc.raw))
		if err != nil || !ok {
			t.Errorf("decodeFrame(%s) ok=%v err=%v", tc.raw, ok, err)
			continue
		}
		if evt.Kind != tc.kind {
			t.Errorf("decodeFrame(%s) kind = %q, want %q", tc.raw, evt.Kind, tc.kind)
		}
	}
}

func TestDecodeFramePayload(t *testing.T) {
	evt, ok, err := decodeFrame([]byte(`{"type":"typing","conversation_id":7,"user_id":3,"is_typing":true}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	frame, isTyping := evt.Payload.(*TypingFrame)
	if !isTyping {
		t.Fatalf("payload type = %T, want *TypingFrame", evt.Payload)
	}
	if frame.ConversationID != 7 || frame.UserID != 3 || !frame.IsTyping {
		t.Errorf("frame = %+v", frame)
	}
}

func TestDecodeFrameUnknownIgnored(t *testing.T) {
	_, ok, err := decodeFrame([]byte(`{"type":"calendar_sync","stuff":1}`))
	if err != nil {
		t.Fatalf("unknown frame should not error: %v", err)
	}
	if ok {
		t.Error("unknown frame type should be ignored")
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	_, _, err := decodeFrame([]byte(`{not json`))
	if err == nil {
		t.Error("expected error for malformed frame")
	}
}
