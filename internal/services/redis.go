package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses url and checks the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return client, nil
}

type relayEnvelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// RedisRelay fans events out across API replicas. Deliver publishes to a Redis
// channel; Run subscribes to the same channel and hands every event to the
// local sink, so each replica pushes to the sockets it holds.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Sink
	log     *slog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, local Sink, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, channel: channel, local: local, log: logger}
}

func (r *RedisRelay) Deliver(ctx context.Context, room string, message []byte) error {
	data, err := json.Marshal(relayEnvelope{Room: room, Message: message})
	if err != nil {
		return errors.Wrap(err, "encode relay envelope")
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "redis publish"), ErrTransportUnavailable)
	}
	return nil
}

// Run relays subscribed events into the local sink until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribe %s", r.channel)
	}
	r.log.Info("redis relay subscribed", slog.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("dropping malformed relay message", slog.Any("error", err))
				continue
			}
			if err := r.local.Deliver(ctx, env.Room, env.Message); err != nil {
				r.log.Warn("relay delivery failed", slog.String("room", env.Room), slog.Any("error", err))
			}
		}
	}
}
