// Package workers hosts the async resolution pool: chat submissions accepted
// with a JSON ack are pushed onto a redis stream and resolved here, with the
// reply reaching the widget over its realtime channel.
package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStream = "chat:jobs"
	DefaultGroup  = "chat-workers"
)

// EnqueueJob pushes one visitor turn onto the resolution stream.
func EnqueueJob(ctx context.Context, rdb *redis.Client, stream, conversationID, messageID string) error {
	if stream == "" {
		stream = DefaultStream
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"ts_unix":         strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

type ChatWorkerPool struct {
	Redis      *redis.Client
	Chat       services.ChatService
	Loader     JobLoader
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

// JobLoader resolves stream fields back into the rows the chat service
// needs.
type JobLoader interface {
	LoadJob(ctx context.Context, conversationID, messageID string) (*services.ChatJob, error)
}

func (p *ChatWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Chat == nil || p.Loader == nil {
		return errors.New("ChatWorkerPool missing dependency: Redis/Chat/Loader must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ChatWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    5,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				// Always ack: a turn that cannot be processed has already
				// been answered with the apology, and a poison entry must
				// not wedge the stream.
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ChatWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	conversationID := getStr("conversation_id")
	messageID := getStr("message_id")
	if conversationID == "" || messageID == "" {
		p.Logger.WithField("redis_id", msg.ID).Warn("dropping malformed chat job")
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":        msg.ID,
		"conversation_id": conversationID,
		"message_id":      messageID,
	})

	job, err := p.Loader.LoadJob(ctx, conversationID, messageID)
	if err != nil {
		log.WithError(err).Error("chat job load failed")
		p.apologize(ctx, conversationID, log)
		return
	}

	start := time.Now()
	reply, err := p.Chat.Respond(ctx, job.Conversation, job.VisitorMessage)
	if err != nil {
		log.WithError(err).Error("chat job resolution failed")
		p.apologize(ctx, conversationID, log)
		return
	}

	log.WithFields(logrus.Fields{
		"reply_id":           reply.ID,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}).Info("chat job resolved")
}

// apologize closes out a failed job with the fallback reply. The entry is
// acked either way; without this the visitor on the async path would wait
// forever for a reply that never comes.
func (p *ChatWorkerPool) apologize(ctx context.Context, conversationID string, log *logrus.Entry) {
	if _, err := p.Chat.Apologize(ctx, conversationID); err != nil {
		log.WithError(err).Error("apology for failed chat job could not be delivered")
	}
}
