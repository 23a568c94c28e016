package repository

import (
	"context"
	"time"

	"prokat/internal/config"
	"prokat/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewStateRepository picks the session store for the menu. Without a Redis
// address sessions stay in memory; with one, Redis is primary and memory
// takes over while it is unreachable. The returned client is nil when
// Redis is not used.
func NewStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.StateRepository, *redis.Client) {
	ttl := time.Duration(cfg.Menu.StateTTL) * time.Second
	memory := NewMemoryStateRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis not configured, using in-memory menu state")
		return memory, nil
	}

	client := NewRedisClient(cfg.Redis)
	if err := Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("Redis unreachable at startup, memory fallback active")
	}

	return NewFailoverStateRepository(NewRedisStateRepository(client, ttl), memory, logger), client
}
