package routes

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/chatstore"
	"github.com/voluntrack/voluntrack/internal/config"
	"github.com/voluntrack/voluntrack/internal/repository"
)

// OpenChatStore builds the configured chat backend wrapped with metrics. The
// returned close func releases backend connections and is never nil.
func OpenChatStore(
	ctx context.Context,
	cfg *config.Config,
	db *pgxpool.Pool,
	clock clockwork.Clock,
	log zerolog.Logger,
) (chatstore.Store, func(), error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	noop := func() {}

	switch cfg.ChatStore {
	case config.ChatStoreRedis:
		client, err := chatstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		kv := chatstore.NewRedisKV(client, cfg.ChatKeyPrefix, log)
		store := chatstore.NewKVStore(kv, cfg.ChatKeyPrefix, chatstore.WithClock(clock), chatstore.WithLogger(log))
		return chatstore.Instrument(store, config.ChatStoreRedis), func() { _ = client.Close() }, nil
	case config.ChatStoreMemory:
		store := chatstore.NewKVStore(chatstore.NewMemoryKV(), cfg.ChatKeyPrefix, chatstore.WithClock(clock), chatstore.WithLogger(log))
		return chatstore.Instrument(store, config.ChatStoreMemory), noop, nil
	default:
		return chatstore.Instrument(repository.NewChatStore(db, clock), config.ChatStorePostgres), noop, nil
	}
}
