package broadcast

import (
	"context"
	"encoding/json"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/redis/go-redis/v9"
)

type RedisBroadcaster struct {
	rdb *redis.Client
}

func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) AgentMessageSent(ctx context.Context, sessionID string, msg *models.Message) error {
	return b.publish(ctx, Event{Type: EventAgentMessage, SessionID: sessionID, Message: msg})
}

func (b *RedisBroadcaster) VisitorMessageSent(ctx context.Context, sessionID string, msg *models.Message) error {
	return b.publish(ctx, Event{Type: EventVisitorMessage, SessionID: sessionID, Message: msg})
}

func (b *RedisBroadcaster) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ChannelFor(ev.SessionID), payload).Err()
}
