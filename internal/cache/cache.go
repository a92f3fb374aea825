package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// HistoryKey is the cache key for a conversation's message history. It is
// invalidated whenever a turn is appended.
func HistoryKey(conversationID string) string {
	return "conversation:" + conversationID + ":history"
}
