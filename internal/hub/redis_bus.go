package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"jammr/backend/internal/logger"
)

type busEnvelope struct {
	ChatID string `json:"chat_id"`
	Event  Event  `json:"event"`
}

// RedisBus relays chat change events between API instances over redis pub/sub.
// Publishing does not touch the local hub; every instance, including the
// publisher, delivers locally from its forwarder.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger, rdb *goredis.Client, channel string) (*RedisBus, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	if channel == "" {
		channel = "jammr:chat"
	}
	return &RedisBus{
		log:     log.With("service", "RedisChatBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, chatID string, event Event) error {
	raw, err := json.Marshal(busEnvelope{ChatID: chatID, Event: event})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// NotifyChanged publishes a change event for chatID to every instance.
func (b *RedisBus) NotifyChanged(ctx context.Context, chatID string) error {
	return b.Publish(ctx, chatID, Event{Type: EventMessagesChanged, Payload: chatID})
}

// StartForwarder subscribes to the channel and rebroadcasts every message
// into h until ctx is cancelled.
func (b *RedisBus) StartForwarder(ctx context.Context, h *Hub) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
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
				var env busEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.log.Warn("bad redis chat payload", "error", err)
					continue
				}
				if err := h.Broadcast(env.ChatID, env.Event); err != nil {
					b.log.Warn("local broadcast failed", "chat_id", env.ChatID, "error", err)
				}
			}
		}
	}()

	b.log.Info("redis chat forwarder started", "channel", b.channel)
	return nil
}
