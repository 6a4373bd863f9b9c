package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"podshare/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// PodEventsChannel carries every lifecycle event.
const PodEventsChannel = "events:pods"

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// RedisSink publishes events to PodEventsChannel and to the recipient's
// user channel.
type RedisSink struct {
	rdb *redis.Client
}

// NewRedisSink creates a sink over rdb. A nil client delivers nothing.
func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, e Event) error {
	if s.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshal event: %v", ErrPermanent, err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Publish(ctx, PodEventsChannel, payload)
	if to := e.Recipient().UserID; to != 0 {
		pipe.Publish(ctx, UserChannel(to), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe listens on PodEventsChannel until ctx is done, calling onEvent
// for every decodable event. It returns once the subscription is confirmed.
func Subscribe(ctx context.Context, rdb *redis.Client, onEvent func(Event)) error {
	if rdb == nil {
		return fmt.Errorf("subscribe: redis is not configured")
	}
	sub := rdb.Subscribe(ctx, PodEventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", PodEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					middleware.Logger.WarnContext(ctx, "undecodable pod event", slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.ErrorContext(ctx, "panic in event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(e)
				}()
			}
		}
	}()

	return nil
}
