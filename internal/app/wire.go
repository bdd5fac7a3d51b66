package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

// Wire bundles the store and logger for the CLI.
type Wire struct {
	Store store.PickleStore
	Log   zerolog.Logger
}

// NewWire constructs the dependency graph from cfg. Logs go to logOut.
func NewWire(ctx context.Context, cfg Config, logOut io.Writer) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(logOut, cfg.LogLevel, cfg.LogPretty)
	olm.UseLogger(logger)

	kdf, err := cfg.KDF()
	if err != nil {
		return nil, err
	}
	if err := olm.SetPickleKDF(kdf); err != nil {
		return nil, fmt.Errorf("set pickle kdf: %w", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("store", cfg.Store).Str("kdf", kdf.String()).Msg("wired")

	return &Wire{Store: st, Log: logger}, nil
}

// Close releases the store.
func (w *Wire) Close() error {
	return w.Store.Close()
}

func openStore(ctx context.Context, cfg Config) (store.PickleStore, error) {
	switch cfg.Store {
	case StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return store.NewRedisStore(rdb, cfg.Redis.Prefix), nil

	case StorePostgres:
		pool, err := connectPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st, err := store.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil

	default:
		return store.NewFileStore(cfg.Home)
	}
}

func connectPostgres(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
