package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"zipfuzz/config"
)

type RedisParams struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
}

// NewRedisClient connects to redis when REDIS_URL is configured. The
// statistics mirror is optional; a nil client disables it.
func NewRedisClient(p RedisParams) (*redis.Client, error) {
	if p.Config.RedisURL == "" {
		p.Logger.Debug("REDIS_URL not set, stats mirror disabled")
		return nil, nil
	}

	options, err := redis.ParseURL(p.Config.RedisURL)
	if err != nil {
		p.Logger.Error("Failed to parse REDIS_URL", zap.Error(err))
		return nil, err
	}
	client := redis.NewClient(options)

	// Test the connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		p.Logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	p.Logger.Debug("Redis client created successfully")
	return client, nil
}
