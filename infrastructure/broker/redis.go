package broker

import (
	"bkalan/domain/event"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes broadcasts on a Redis channel so every server
// instance subscribed to it can deliver them to its own participants.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcaster(rdb *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, broadcast event.Broadcast) error {
	payload, err := json.Marshal(broadcast)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// RedisRelayWorker subscribes to the Redis channel and forwards every
// broadcast to the local fanout.
type RedisRelayWorker struct {
	log        *slog.Logger
	rdb        *redis.Client
	channel    string
	broadcasts chan<- event.Broadcast
}

func NewRedisRelayWorker(log *slog.Logger, rdb *redis.Client, channel string,
	broadcasts chan<- event.Broadcast) *RedisRelayWorker {
	return &RedisRelayWorker{log: log, rdb: rdb, channel: channel, broadcasts: broadcasts}
}

func (w *RedisRelayWorker) Run(ctx context.Context) error {
	pubsub := w.rdb.Subscribe(ctx, w.channel)
	defer func() { _ = pubsub.Close() }()

	// Wait for the subscription confirmation so a broken Redis surfaces as a
	// worker error and the supervisor restarts us.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	w.log.Info("Relaying broadcasts from Redis", "channel", w.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			broadcast, err := decodeBroadcast(msg.Payload)
			if err != nil {
				w.log.Warn("Dropping undecodable broadcast", "error", err)
				continue
			}
			select {
			case w.broadcasts <- broadcast:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func decodeBroadcast(payload string) (event.Broadcast, error) {
	var broadcast event.Broadcast
	err := json.Unmarshal([]byte(payload), &broadcast)
	return broadcast, err
}
