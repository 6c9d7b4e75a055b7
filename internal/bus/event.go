package bus

import "time"

// Kind identifies an event type on the bus.
type Kind string

// Push frame kinds, forwarded verbatim from the push channel.
const (
	PushNewMessage   Kind = "push.new_message"
	PushTyping       Kind = "push.typing"
	PushNotification Kind = "push.notification"
	PushUserOnline   Kind = "push.user_online"
	PushUserOffline  Kind = "push.user_offline"
	PushMessageRead  Kind = "push.message_read"
)

// Connection lifecycle kinds.
const (
	ConnStateChanged Kind = "conn.state_changed"
	ConnOpened       Kind = "conn.opened"
	ConnGaveUp       Kind = "conn.gave_up"
)

// Cache kinds.
const (
	ConversationsUpdated Kind = "cache.conversations_updated"
	MessagesUpdated      Kind = "cache.messages_updated"
	ConversationSelected Kind = "cache.conversation_selected"
	UsersUpdated         Kind = "cache.users_updated"
)

// Notice is published for transient user-visible notices.
const Notice Kind = "ui.notice"

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
