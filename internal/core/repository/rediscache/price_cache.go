package rediscache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

const priceTTL = 30 * time.Second

// PriceCache fronts the metal-price table with redis. Cache failures are
// logged and fall through to the database, never surfaced to callers.
type PriceCache struct {
	inner repository.CatalogRepository
	rdb   *redis.Client
	log   logger.Logger
}

func NewPriceCache(inner repository.CatalogRepository, rdb *redis.Client, log logger.Logger) *PriceCache {
	return &PriceCache{inner: inner, rdb: rdb, log: log}
}

func (c *PriceCache) PricePerGram(ctx context.Context, metal models.MetalType) (int64, error) {
	key := fmt.Sprintf("metal_price:%s", metal)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		price, parseErr := strconv.ParseInt(cached, 10, 64)
		if parseErr == nil {
			return price, nil
		}
		c.log.Warn("Unparseable cached price, falling through",
			logger.StringField("key", key),
			logger.StringField("value", cached))
	} else if err != redis.Nil {
		c.log.Warn("Price cache read failed", logger.ErrorField("error", err))
	}

	price, err := c.inner.PricePerGram(ctx, metal)
	if err != nil {
		return 0, err
	}

	if setErr := c.rdb.Set(ctx, key, strconv.FormatInt(price, 10), priceTTL).Err(); setErr != nil {
		c.log.Warn("Price cache write failed", logger.ErrorField("error", setErr))
	}

	return price, nil
}
