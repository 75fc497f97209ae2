package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
	"github.com/redis/go-redis/v9"
)

const (
	fieldType    = "type"
	fieldKey     = "key"
	fieldPayload = "payload"

	readCount = 16
)

// streamClient is the part of *redis.Client the bus uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// RedisBus publishes to and consumes from Redis Streams.
type RedisBus struct {
	client    streamClient
	processor *Processor
	logger    logging.Logger
	block     time.Duration
	backoff   time.Duration
}

// NewRedisBus wires the bus. The processor is built here so that dead
// letters go out through the same client.
func NewRedisBus(client streamClient, policy RetryPolicy, logger logging.Logger) *RedisBus {
	b := &RedisBus{
		client:  client,
		logger:  logger.With("module", "eventbus"),
		block:   5 * time.Second,
		backoff: time.Second,
	}
	b.processor = NewProcessor(policy, b, logger)
	return b
}

// NewRedisClient opens a go-redis client from plain settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Publish appends one JSON-encoded event to the topic stream.
func (b *RedisBus) Publish(ctx context.Context, topic, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			fieldType:    eventType,
			fieldKey:     key,
			fieldPayload: string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	return nil
}

// Consume blocks until ctx is done or a handler exhausts its retries with
// dead-lettering disabled. Entries left pending by an earlier run of the
// same consumer are replayed first.
func (b *RedisBus) Consume(ctx context.Context, sub Subscription) error {
	if err := b.ensureGroup(ctx, sub); err != nil {
		return err
	}
	log := b.logger.With("topic", sub.Topic, "group", sub.Group, "consumer", sub.Consumer)
	log.Info(ctx, "consumer started")

	// "0" replays our own pending entries, ">" asks for new ones.
	cursor := "0"
	for {
		if ctx.Err() != nil {
			log.Info(ctx, "consumer stopped")
			return nil
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    sub.Group,
			Consumer: sub.Consumer,
			Streams:  []string{sub.Topic, cursor},
			Count:    readCount,
			Block:    b.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warn(ctx, "read from stream failed", "error", err)
			sleep(ctx, b.backoff)
			continue
		}

		n := 0
		for _, s := range streams {
			for _, msg := range s.Messages {
				n++
				if err := b.handle(ctx, sub, msg); err != nil {
					return err
				}
			}
		}
		if cursor == "0" && n == 0 {
			cursor = ">"
		}
	}
}

func (b *RedisBus) handle(ctx context.Context, sub Subscription, msg redis.XMessage) error {
	ev := toEvent(sub.Topic, msg)
	if err := b.processor.Process(ctx, ev, sub.Handler); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := b.client.XAck(ctx, sub.Topic, sub.Group, msg.ID).Err(); err != nil {
		// Unacked entries are redelivered; handlers are idempotent.
		b.logger.Warn(ctx, "ack failed", "topic", sub.Topic, "id", msg.ID, "error", err)
	}
	return nil
}

func (b *RedisBus) ensureGroup(ctx context.Context, sub Subscription) error {
	err := b.client.XGroupCreateMkStream(ctx, sub.Topic, sub.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", sub.Group, sub.Topic, err)
	}
	return nil
}

func toEvent(topic string, msg redis.XMessage) Event {
	str := func(k string) string {
		if v, ok := msg.Values[k].(string); ok {
			return v
		}
		return ""
	}
	return Event{
		ID:      msg.ID,
		Topic:   topic,
		Type:    str(fieldType),
		Key:     str(fieldKey),
		Payload: []byte(str(fieldPayload)),
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
