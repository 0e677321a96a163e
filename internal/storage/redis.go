package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ventishh/backend/internal/models"
)

// MatchBus розсилає події "match_found" між інстансами сервера через Redis Pub/Sub.
type MatchBus struct {
	Redis   *redis.Client
	Channel string
}

func NewMatchBus(rdb *redis.Client, channel string) *MatchBus {
	return &MatchBus{Redis: rdb, Channel: channel}
}

// PublishMatch публікує подію в Redis Pub/Sub.
func (b *MatchBus) PublishMatch(ctx context.Context, event models.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.Redis.Publish(ctx, b.Channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("publish match event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the match channel. The caller closes it.
func (b *MatchBus) Subscribe(ctx context.Context) *redis.PubSub {
	return b.Redis.Subscribe(ctx, b.Channel)
}

// DecodeMatchEvent parses a payload produced by PublishMatch.
func DecodeMatchEvent(payload string) (models.MatchEvent, error) {
	var event models.MatchEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.MatchEvent{}, fmt.Errorf("decode match event: %w", err)
	}
	return event, nil
}
