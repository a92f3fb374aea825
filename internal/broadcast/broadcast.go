// Package broadcast delivers chat events to the widget's realtime channel.
// Each session has its own channel; the websocket bridge forwards payloads
// verbatim to connected widgets.
package broadcast

import (
	"context"

	"github.com/andgrowhq/chatwidget/internal/models"
)

const (
	EventAgentMessage   = "agent-message"
	EventVisitorMessage = "visitor-message"
)

// Event is the wire payload published on a session channel.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Message   *models.Message `json:"message"`
}

type Broadcaster interface {
	// AgentMessageSent announces a resolved agent reply to the session's
	// subscribers. Exactly one such event follows every visitor turn.
	AgentMessageSent(ctx context.Context, sessionID string, msg *models.Message) error
	// VisitorMessageSent mirrors a visitor turn to other tabs of the same
	// session.
	VisitorMessageSent(ctx context.Context, sessionID string, msg *models.Message) error
}

// ChannelFor names the pub/sub channel of one widget session.
func ChannelFor(sessionID string) string {
	return "chat-session:" + sessionID
}
