package ratelimit

import (
	"context"

	"github.com/kraalmart/kraalmart/internal/clock"
	"github.com/kraalmart/kraalmart/internal/config"
	"github.com/kraalmart/kraalmart/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(provideStore),
	fx.Provide(provideLimiter),
)

func provideStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Store {
	if cfg.RedisAddr == "" {
		log.Named("ratelimit").Info("redis not configured, using in-memory store")
		return NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisStore(client)
}

type limiterParams struct {
	fx.In

	Store   Store
	Log     *zap.Logger
	Clk     clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

func provideLimiter(p limiterParams) *Limiter {
	return NewLimiter(p.Store, p.Log, p.Clk, p.Metrics)
}
