package broadcast

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

// PubSub is the part of the Redis cache client used for broadcasting.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) *redis.PubSub
}

// RedisBroker fans events out through a Redis channel so every API replica
// sees predictions made by the others.
type RedisBroker struct {
	client  PubSub
	channel string
	buffer  int
}

func NewRedisBroker(client PubSub, channel string) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, buffer: DefaultBuffer}
}

func (b *RedisBroker) Publish(ctx context.Context, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, env)
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if pubsub == nil {
		return nil, errors.New("redis is not connected")
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan Envelope, b.buffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				env, err := decodeEnvelope(msg.Payload)
				if err != nil {
					log.WithError(err).Warn("dropping malformed broadcast message")
					continue
				}
				select {
				case out <- env:
				default:
				}
			}
		}
	}()
	return out, nil
}

func decodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("missing event name")
	}
	return env, nil
}
