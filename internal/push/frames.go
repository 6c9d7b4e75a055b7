package push

import (
	"encoding/json"
	"fmt"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
)

// Inbound frame payloads. The transport forwards them verbatim; all
// interpretation happens in the subscribing components.

// NewMessageFrame announces a message created in some conversation.
type NewMessageFrame struct {
	ConversationID int64        `json:"conversation_id"`
	Message        *api.Message `json:"message,omitempty"`
}

// TypingFrame carries a typing indicator change.
type TypingFrame struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	IsTyping       bool  `json:"is_typing"`
}

// PresenceFrame announces a user going online or offline.
type PresenceFrame struct {
	UserID int64 `json:"user_id"`
}

// NotificationFrame carries a generic list-affecting notification.
type NotificationFrame struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ReadFrame announces that a user read a conversation.
type ReadFrame struct {
	ConversationID int64 `json:"conversation_id"`
	ReaderID       int64 `json:"reader_id"`
}

// envelope carries the type discriminant; the full frame is re-decoded
// into the concrete payload once the type is known.
type envelope struct {
	Type string `json:"type"`
}

// frameKinds maps wire discriminants to bus kinds.
var frameKinds = map[string]bus.Kind{
	"new_message":  bus.PushNewMessage,
	"typing":       bus.PushTyping,
	"notification": bus.PushNotification,
	"user_online":  bus.PushUserOnline,
	"user_offline": bus.PushUserOffline,
	"message_read": bus.PushMessageRead,
}

// decodeFrame parses a raw inbound frame into a bus event. Unknown
// discriminants return ok=false and are ignored by the caller, keeping
// the client forward compatible with new server-side frame types.
func decodeFrame(data []byte) (bus.Event, bool, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bus.Event{}, false, fmt.Errorf("decode frame envelope: %w", err)
	}

	kind, ok := frameKinds[env.Type]
	if !ok {
		return bus.Event{}, false, nil
	}

	var payload any
	switch kind {
	case bus.PushNewMessage:
		payload = &NewMessageFrame{}
	case bus.PushTyping:
		payload = &TypingFrame{}
	case bus.PushUserOnline, bus.PushUserOffline:
		payload = &PresenceFrame{}
	case bus.PushNotification:
		payload = &NotificationFrame{}
	case bus.PushMessageRead:
		payload = &ReadFrame{}
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return bus.Event{}, false, fmt.Errorf("decode %s frame: %w", env.Type, err)
	}

	return bus.Event{Kind: kind, Payload: payload}, true, nil
}

// Outbound frames.

type joinFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
}

type typingFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}
