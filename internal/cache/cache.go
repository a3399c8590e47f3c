package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/casadx/pedidos/internal/config"
)

// Store represents a generic cache backend.
//
// Read paths fill entries with Fill, passing the Generation observed before
// loading from the database. Write paths call Invalidate after committing; a
// fill whose generation no longer matches is dropped.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Generation(ctx context.Context, key string) (int64, error)
	Invalidate(ctx context.Context, keys ...string) error
	Fill(ctx context.Context, key string, value []byte, ttl time.Duration, gen int64) (bool, error)
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// generationTTL outlives any request holding a generation, so an expired
// counter never reads as unchanged.
const generationTTL = 24 * time.Hour

func generationKey(key string) string {
	return key + ":gen"
}

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("cache disabled; using noop store")
		return Noop(), nil
	case "redis":
		return newRedisStore(lc, cfg.Cache, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// Noop returns a store that never holds anything.
func Noop() Store {
	return noopStore{}
}

// GetJSON loads key into dst. Misses surface as ErrCacheMiss.
func GetJSON(ctx context.Context, store Store, key string, dst any) error {
	if store == nil {
		return ErrCacheMiss
	}
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// FillJSON encodes value and stores it only if key's generation is still gen.
func FillJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration, gen int64) (bool, error) {
	if store == nil {
		return false, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Fill(ctx, key, raw, ttl, gen)
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (noopStore) Invalidate(context.Context, ...string) error {
	return nil
}

func (noopStore) Fill(context.Context, string, []byte, time.Duration, int64) (bool, error) {
	return false, nil
}

type redisStore struct {
	client     *goredis.Client
	defaultTTL time.Duration
}

func newRedisStore(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) (Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := &redisStore{client: client, defaultTTL: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis cache")
			return client.Close()
		},
	})

	return store, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := s.client.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *redisStore) Invalidate(ctx context.Context, keys ...string) error {
	filtered := nonEmpty(keys)
	if len(filtered) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, k := range filtered {
			pipe.Incr(ctx, generationKey(k))
			pipe.Expire(ctx, generationKey(k), generationTTL)
		}
		pipe.Del(ctx, filtered...)
		return nil
	})
	return err
}

var errStaleGeneration = errors.New("cache generation changed")

func (s *redisStore) Fill(ctx context.Context, key string, value []byte, ttl time.Duration, gen int64) (bool, error) {
	if key == "" {
		return false, errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	genKey := generationKey(key)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, goredis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}

func nonEmpty(keys []string) []string {
	filtered := keys[:0:0]
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	return filtered
}

// KeyPedido is the cache key of a single pedido.
func KeyPedido(id int64) string {
	return fmt.Sprintf("pedidos:%d", id)
}
