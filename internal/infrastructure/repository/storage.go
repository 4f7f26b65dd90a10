// Package repository wires the configured product store.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrops-br/products-service/internal/core/tx"
	"github.com/mrops-br/products-service/internal/domain"
	"github.com/mrops-br/products-service/internal/infrastructure/config"
	"github.com/mrops-br/products-service/internal/infrastructure/repository/memory"
	"github.com/mrops-br/products-service/internal/infrastructure/repository/postgres"
	"github.com/mrops-br/products-service/internal/infrastructure/repository/redis"
)

// Storage bundles a product repository with the transaction manager that
// scopes its calls.
type Storage struct {
	Products domain.ProductRepository
	Tx       tx.Manager

	close func()
}

// Close releases connections held by the store.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, tracer trace.Tracer, logger *slog.Logger) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return &Storage{
			Products: memory.NewProductRepository(tracer, logger),
			Tx:       tx.Nop{},
		}, nil

	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = cfg.MaxConns
		poolCfg.MinConns = cfg.MinConns

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		postgres.LogPoolStats(ctx, logger, pool)

		txm := postgres.NewTxManager(pool, logger)
		return &Storage{
			Products: postgres.NewProductRepository(txm),
			Tx:       txm,
			close:    pool.Close,
		}, nil

	case config.DriverRedis:
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}

		return &Storage{
			Products: redis.NewProductRepository(client, cfg.RedisKeyPrefix, logger),
			Tx:       tx.Nop{},
			close: func() {
				if err := client.Close(); err != nil {
					logger.Warn("Failed to close redis client", slog.String("error", err.Error()))
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
