package receipts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/cache"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu        sync.Mutex
	openID    int64
	messages  []api.Message
	markReads []int64
	refreshes int
}

func (f *fakeStore) OpenID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openID
}

func (f *fakeStore) Messages() []api.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Message(nil), f.messages...)
}

func (f *fakeStore) RefreshMessages(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeStore) MarkRead(_ context.Context, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads = append(f.markReads, id)
}

type fakeJoiner struct {
	mu     sync.Mutex
	joined []int64
}

func (f *fakeJoiner) JoinConversation(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, id)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOpenMarksReadAndJoins(t *testing.T) {
	b := bus.New()
	store := &fakeStore{openID: 3}
	joiner := &fakeJoiner{}
	tr := New(b, store, joiner, 99, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	b.Publish(bus.Event{Kind: bus.ConversationSelected, Payload: cache.SelectedPayload{ConversationID: 3}})

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		joiner.mu.Lock()
		defer joiner.mu.Unlock()
		return len(store.markReads) == 1 && len(joiner.joined) == 1
	})

	if store.markReads[0] != 3 || joiner.joined[0] != 3 {
		t.Errorf("markReads=%v joined=%v, want conversation 3", store.markReads, joiner.joined)
	}
}

func TestRefreshWithUnreadInboundReAcks(t *testing.T) {
	b := bus.New()
	store := &fakeStore{
		openID: 3,
		messages: []api.Message{
			{ID: 1, SenderID: 2, Status: api.StatusDelivered},
			{ID: 2, SenderID: 99, Status: api.StatusSent},
		},
	}
	tr := New(b, store, &fakeJoiner{}, 99, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	b.Publish(bus.Event{Kind: bus.MessagesUpdated, Payload: cache.MessagesPayload{ConversationID: 3}})

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.markReads) == 1 && store.markReads[0] == 3
	})
}

func TestRefreshAllReadStaysQuiet(t *testing.T) {
	b := bus.New()
	store := &fakeStore{
		openID: 3,
		messages: []api.Message{
			{ID: 1, SenderID: 2, Status: api.StatusRead},
			// Own unread-looking message does not trigger an ack.
			{ID: 2, SenderID: 99, Status: api.StatusSent},
		},
	}
	tr := New(b, store, &fakeJoiner{}, 99, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	b.Publish(bus.Event{Kind: bus.MessagesUpdated, Payload: cache.MessagesPayload{ConversationID: 3}})
	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.markReads) != 0 {
		t.Errorf("markReads = %v, want none", store.markReads)
	}
}

func TestMessageReadEventForcesRePull(t *testing.T) {
	b := bus.New()
	store := &fakeStore{openID: 3}
	tr := New(b, store, &fakeJoiner{}, 99, zap.NewNop())
	tr.Start(context.Background())
	defer tr.Stop()

	// Read event for another conversation: ignored.
	b.Publish(bus.Event{Kind: bus.PushMessageRead, Payload: &push.ReadFrame{ConversationID: 8}})
	// Read event for the open conversation: immediate re-pull.
	b.Publish(bus.Event{Kind: bus.PushMessageRead, Payload: &push.ReadFrame{ConversationID: 3}})

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.refreshes == 1
	})

	time.Sleep(20 * time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.refreshes != 1 {
		t.Errorf("refreshes = %d, want exactly 1", store.refreshes)
	}
}
