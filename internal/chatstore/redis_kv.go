package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKV stores blobs as plain Redis strings and announces every write on a
// pub/sub channel so that other RedisKV instances can refresh.
type RedisKV struct {
	client  redis.UniversalClient
	channel string
	origin  string
	log     zerolog.Logger
}

type changeNotice struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

func NewRedisKV(client redis.UniversalClient, prefix string, log zerolog.Logger) *RedisKV {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	origin := uuid.NewString()
	return &RedisKV{
		client:  client,
		channel: prefix + ":changes",
		origin:  origin,
		log:     log.With().Str("component", "chat-redis-kv").Str("origin", origin).Logger(),
	}
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	notice, err := json.Marshal(changeNotice{Origin: r.origin, Key: key})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, notice).Err(); err != nil {
		// the value is stored; peers still converge on their next poll
		r.log.Warn().Err(err).Str("key", key).Msg("failed to publish change notice")
	}
	return nil
}

func (r *RedisKV) Watch(ctx context.Context) (<-chan string, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	out := make(chan string, watchBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var notice changeNotice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					r.log.Warn().Err(err).Msg("dropping malformed change notice")
					continue
				}
				if notice.Origin == r.origin {
					continue
				}
				select {
				case out <- notice.Key:
				default:
				}
			}
		}
	}()

	return out, nil
}
