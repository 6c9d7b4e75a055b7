package push

import (
	"fmt"
	"sync"
	"time"

	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/connstate"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxDelay caps the reconnect backoff.
const maxDelay = 30 * time.Second

// ReconnectDelay returns the backoff delay before the given reconnect
// attempt (1-based): min(1s * 2^attempt, 30s).
func ReconnectDelay(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}

// Manager owns the single push connection for the signed-in user. It
// decodes inbound frames onto the bus and supports the two outbound
// frames (join_conversation, typing). On network drop it reconnects
// with bounded exponential backoff; once the attempt cap is reached the
// console keeps running on the polling baseline.
type Manager struct {
	url     string
	userID  int64
	bus     *bus.Bus
	machine *connstate.Machine
	logger  *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	timer   *time.Timer
	stopped bool

	writeMu sync.Mutex
}

// NewManager creates a push manager for the per-user channel endpoint.
func NewManager(pushURL string, userID int64, b *bus.Bus, m *connstate.Machine, logger *zap.Logger) *Manager {
	return &Manager{
		url:     fmt.Sprintf("%s/ws/chat/%d/", pushURL, userID),
		userID:  userID,
		bus:     b,
		machine: m,
		logger:  logger,
	}
}

// Open establishes the connection asynchronously. Safe to call once.
func (m *Manager) Open() {
	go m.connect()
}

// Close tears the connection down deterministically: any pending
// reconnect timer is cancelled and no further reconnect is attempted.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.logger.Info("push channel closed")
}

func (m *Manager) connect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	_ = m.machine.Transition(connstate.Connecting)
	m.logger.Info("connecting push channel", zap.String("url", m.url))

	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		m.logger.Warn("push dial failed", zap.Error(err))
		_ = m.machine.Transition(connstate.Closed)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	_ = m.machine.Transition(connstate.Open)
	m.machine.ResetAttempts()
	// One-shot refresh so presence that drifted while disconnected is
	// reconciled by the cache.
	m.bus.Publish(bus.Event{Kind: bus.ConnOpened})
	m.logger.Info("push channel open")

	m.readLoop(conn)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stopped := m.stopped
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()

			if stopped {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("push channel dropped", zap.Error(err))
			}
			_ = m.machine.Transition(connstate.Closed)
			m.scheduleReconnect()
			return
		}

		evt, ok, err := decodeFrame(data)
		if err != nil {
			m.logger.Warn("malformed push frame", zap.Error(err))
			continue
		}
		if !ok {
			// Unknown frame type; ignore for forward compatibility.
			continue
		}
		m.bus.Publish(evt)
	}
}

func (m *Manager) scheduleReconnect() {
	attempt := m.machine.NextAttempt()
	if attempt > connstate.MaxAttempts {
		m.logger.Warn("push reconnect cap reached, polling baseline only",
			zap.Int("attempts", connstate.MaxAttempts))
		m.bus.Publish(bus.Event{Kind: bus.ConnGaveUp})
		return
	}

	delay := ReconnectDelay(attempt)
	m.logger.Info("scheduling push reconnect",
		zap.Int("attempt", attempt), zap.Duration("delay", delay))

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.timer = time.AfterFunc(delay, m.connect)
	m.mu.Unlock()
}

// JoinConversation tells the channel to scope message_read events to
// the opened conversation.
func (m *Manager) JoinConversation(conversationID int64) {
	m.send(joinFrame{Type: "join_conversation", ConversationID: conversationID})
}

// SendTyping emits a typing indicator change for a conversation.
func (m *Manager) SendTyping(conversationID int64, isTyping bool) {
	m.send(typingFrame{Type: "typing", ConversationID: conversationID, IsTyping: isTyping})
}

func (m *Manager) send(frame any) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		// Not connected; outbound frames are best-effort accelerants.
		return
	}

	m.writeMu.Lock()
	err := conn.WriteJSON(frame)
	m.writeMu.Unlock()
	if err != nil {
		m.logger.Warn("push write failed", zap.Error(err))
	}
}
