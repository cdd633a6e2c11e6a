package notification

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/tracing"
)

// DefaultChannel is where the dashboard listens for notifications.
const DefaultChannel = "hermes:fe"

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay publishes notifications on a Redis pub/sub channel.
type RedisRelay struct {
	client  channelPublisher
	channel string
}

func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

func NewRedisRelay(client channelPublisher, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Relay(ctx context.Context, notification []byte) error {
	span, ctx := tracing.StartTracerSpan(ctx, "RedisRelay.Relay")
	defer span.Finish()
	tracing.TagComponentService(span)

	receivers, err := r.client.Publish(ctx, r.channel, notification).Result()
	if err != nil {
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("redis", "publish "+r.channel, err)
	}
	span.LogKV("receivers", receivers)
	return nil
}
