package api

import "time"

// Delivery states for an outgoing message, in ascending order.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// DeliveryRank maps a delivery state to its position in the
// sent < delivered < read order. Unknown states rank below sent.
func DeliveryRank(status string) int {
	switch status {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Conversation is a staff chat thread, 1:1 or group.
type Conversation struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	IsGroup         bool            `json:"is_group"`
	OtherUserID     int64           `json:"other_user_id,omitempty"`
	OtherUserOnline bool            `json:"other_user_online"`
	LastMessage     *MessageSummary `json:"last_message,omitempty"`
	UnreadCount     int             `json:"unread_count"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// OtherUserTyping is ephemeral state patched from push events,
	// never part of a pull response.
	OtherUserTyping bool `json:"-"`
}

// MessageSummary is the last-message preview on a conversation.
type MessageSummary struct {
	Content   string    `json:"content"`
	SenderID  int64     `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a chat message. Content is opaque text that may embed
// reference tokens.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	ReplyTo        *ReplyRef `json:"reply_to,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID         int64  `json:"id"`
	SenderName string `json:"sender_name"`
	Snippet    string `json:"snippet"`
}

// User is a messageable staff user from the directory.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsOnline bool   `json:"is_online"`
}

// EntityHit is one row of an entity search response.
type EntityHit struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Subtitle string `json:"subtitle"`
}

// EntityDetail is the detail payload for the reference preview dialog.
// Fields holds type-specific attributes (price, category, requester...)
// the backend chooses to expose.
type EntityDetail struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Subtitle string            `json:"subtitle"`
	Fields   map[string]string `json:"fields"`
}

// Gif is one result from the gif search proxy.
type Gif struct {
	URL     string `json:"url"`
	Preview string `json:"preview"`
	Title   string `json:"title"`
}
