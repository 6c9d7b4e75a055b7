package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "secret", nil)
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Token secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Token secret")
	}
}

func TestListMessages(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/conversations/7/messages/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id": 1, "conversation_id": 7, "sender_id": 2, "sender_name": "Ama", "content": "hello", "message_type": "text", "status": "read"},
			{"id": 2, "conversation_id": 7, "sender_id": 3, "sender_name": "Kofi", "content": "hi", "message_type": "text", "status": "sent"}
		]`))
	})

	msgs, err := c.ListMessages(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != 1 || msgs[0].SenderName != "Ama" || msgs[0].Status != StatusRead {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
}

func TestSendMessageBody(t *testing.T) {
	var got map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id": 10, "conversation_id": 3, "content": "hey", "message_type": "text", "status": "sent"}`))
	})

	msg, err := c.SendMessage(context.Background(), 3, "hey", "text", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != 10 {
		t.Errorf("message id = %d, want 10", msg.ID)
	}
	if got["content"] != "hey" || got["message_type"] != "text" {
		t.Errorf("request body = %v", got)
	}
	if _, present := got["reply_to"]; present {
		t.Error("reply_to sent without a reply target")
	}
}

func TestStatusError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	err := c.MarkRead(context.Background(), 1)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("code = %d, want 403", se.Code)
	}
}

func TestStatusErrorLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "secret", zap.New(core))

	if err := c.MarkRead(context.Background(), 1); err == nil {
		t.Fatal("expected error for 403 response")
	}

	entries := logs.FilterMessage("backend request failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warn entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusForbidden) {
		t.Errorf("logged status = %v, want 403", got)
	}
}

func TestFundRequestScope(t *testing.T) {
	var gotMine string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMine = r.URL.Query().Get("mine")
		_, _ = w.Write([]byte(`[]`))
	})

	if _, err := c.SearchFundRequests(context.Background(), "invoice", true); err != nil {
		t.Fatal(err)
	}
	if gotMine != "true" {
		t.Errorf("mine = %q, want true", gotMine)
	}
}

func TestDeliveryRank(t *testing.T) {
	if !(DeliveryRank(StatusSent) < DeliveryRank(StatusDelivered) &&
		DeliveryRank(StatusDelivered) < DeliveryRank(StatusRead)) {
		t.Error("delivery ranks are not strictly increasing")
	}
	if DeliveryRank("bogus") >= DeliveryRank(StatusSent) {
		t.Error("unknown status should rank below sent")
	}
}
