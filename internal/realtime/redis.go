package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed distributes change events over a Redis channel so several API instances see each other's writes.
type RedisFeed struct {
	*Hub
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisFeed builds a feed on an existing client.
func NewRedisFeed(client *redis.Client, channel string, logger *zap.Logger) (*RedisFeed, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{
		Hub:     NewHub(logger),
		client:  client,
		channel: channel,
		logger:  logger.With(zap.String("feed", "redis"), zap.String("channel", channel)),
	}, nil
}

// Start subscribes and forwards messages until ctx is cancelled.
func (f *RedisFeed) Start(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				event, err := DecodeEvent([]byte(m.Payload))
				if err != nil {
					f.logger.Warn("bad change payload", zap.Error(err))
					continue
				}
				f.Dispatch(event)
			}
		}
	}()
	return nil
}

// Publish announces a change to every subscribed instance, including this one.
func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, raw).Err()
}
