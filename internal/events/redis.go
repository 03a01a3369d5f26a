package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the stream key events are appended to.
const DefaultStream = "skillgate:events"

// maxLen bounds the stream; trimming is approximate.
const maxLen = 10000

// readRetryDelay is the pause after a failed stream read before retrying.
const readRetryDelay = time.Second

// Bus publishes events to a Redis stream.
type Bus struct {
	rdb        *redis.Client
	stream     string
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewBus connects to Redis and verifies the connection.
func NewBus(ctx context.Context, redisURL, stream string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &Bus{rdb: rdb, stream: stream, retryDelay: readRetryDelay, logger: logger}, nil
}

// Publish appends an event to the stream.
func (b *Bus) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": ev.Type,
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.stream, err)
	}

	b.logger.Debug("published event",
		zap.String("id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("skill", ev.SkillSlug))
	return nil
}

// Subscribe reads new events from the stream until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context) <-chan *Event {
	ch := make(chan *Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if errors.Is(err, redis.Nil) {
					continue
				}
				b.logger.Warn("stream read failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(b.retryDelay):
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) != nil {
						continue
					}
					select {
					case ch <- &ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
