package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	catalogVersionKey = "labstock:catalog:version"
	catalogKeyPrefix  = "labstock:catalog"
	// CatalogBumpChannel carries catalog version bumps to other instances.
	CatalogBumpChannel = "labstock.catalog.bump"
)

// CatalogCache memoises the product catalog in Redis. Keys embed a version
// counter so Invalidate drops every cached view at once. A nil cache, a
// cache without a client, or a failing Redis reads through to the loader.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCatalogCache constructs the cache. logger may be nil.
func NewCatalogCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{client: client, ttl: ttl, logger: logger}
}

func (c *CatalogCache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current catalog version, initialising it when missing.
func (c *CatalogCache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.SetNX(ctx, catalogVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, catalogVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Products returns the cached product list for scope, calling load on a miss.
// Concurrent misses for the same scope share one load.
func (c *CatalogCache) Products(ctx context.Context, scope string, load func(context.Context) ([]Product, error)) ([]Product, error) {
	if load == nil {
		return nil, errors.New("masterdata: catalog loader required")
	}
	if !c.enabled() {
		return load(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		c.logger.Warn("catalog cache unavailable, reading store", slog.String("scope", scope), slog.Any("error", err))
		return load(ctx)
	}
	key := fmt.Sprintf("%s:%s:%d", catalogKeyPrefix, scope, ver)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fetch(ctx, key, load)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Product), nil
	}
}

func (c *CatalogCache) fetch(ctx context.Context, key string, load func(context.Context) ([]Product, error)) ([]Product, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache get", slog.String("key", key), slog.Any("error", err))
	}

	products, err := load(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache set", slog.String("key", key), slog.Any("error", err))
	}
	return products, nil
}

// Invalidate bumps the catalog version and announces it on CatalogBumpChannel.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, catalogVersionKey).Result()
	if err != nil {
		return fmt.Errorf("masterdata: catalog bump: %w", err)
	}
	return c.client.Publish(ctx, CatalogBumpChannel, strconv.FormatInt(ver, 10)).Err()
}
