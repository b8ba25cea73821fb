package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "intake-gateway/pkg/domain-errors"
	"intake-gateway/pkg/platform/sentinel"
)

// Catalog is the lookup slice of the client.
type Catalog interface {
	Municipalities(ctx context.Context) ([]Item, error)
	Localities(ctx context.Context, municipalityID string) ([]Item, error)
}

// Cache is a best-effort byte cache. Failures are logged, never surfaced:
// the catalog service stays authoritative.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service answers catalog lookups with a read-through cache in front of the
// geographic service.
type Service struct {
	catalog Catalog
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
}

func NewService(catalog Catalog, cache Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{catalog: catalog, cache: cache, ttl: ttl, logger: logger}
}

// Municipalities returns the state's municipality catalog.
func (s *Service) Municipalities(ctx context.Context) ([]Item, error) {
	return s.lookup(ctx, "refdata:municipios", func(ctx context.Context) ([]Item, error) {
		return s.catalog.Municipalities(ctx)
	})
}

// Localities returns the localities of a municipality. An empty parent is a
// caller error: the dependent selector must not fire before its parent has
// a value.
func (s *Service) Localities(ctx context.Context, municipalityID string) ([]Item, error) {
	if municipalityID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "seleccione primero un municipio")
	}
	return s.lookup(ctx, "refdata:localidades:"+municipalityID, func(ctx context.Context) ([]Item, error) {
		return s.catalog.Localities(ctx, municipalityID)
	})
}

func (s *Service) lookup(ctx context.Context, key string, fetch func(context.Context) ([]Item, error)) ([]Item, error) {
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("refdata cache read failed", "key", key, "error", err)
	} else if ok {
		var items []Item
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
		s.logger.Warn("refdata cache entry corrupt", "key", key)
	}

	items, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "el catálogo no está disponible")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "error consultando el catálogo")
	}

	// Empty lists are valid answers and worth caching too.
	if encoded, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			s.logger.Warn("refdata cache write failed", "key", key, "error", err)
		}
	}
	return items, nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// RedisCache adapts a go-redis client to the Cache interface.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}
