package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateSource is the read side of the rate configuration.
type RateSource interface {
	ActiveCommissionTiers(ctx context.Context) ([]CommissionTier, error)
	ActiveWithholdingRate(ctx context.Context) (WithholdingRate, error)
	PayerProfile(ctx context.Context, userID string) (PayerProfile, error)
	JurisdictionRates(ctx context.Context) ([]JurisdictionTaxRate, error)
}

const (
	cacheKeyTiers        = "settlement:rates:tiers"
	cacheKeyWithholding  = "settlement:rates:withholding"
	cacheKeyJurisdiction = "settlement:rates:jurisdictions"
)

// RateCache serves rate reads from Redis for at most ttl after they were
// loaded from the source. Payer profiles pass through uncached. Redis
// failures fall back to the source.
type RateCache struct {
	src RateSource
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ RateSource = (*RateCache)(nil)

func NewRateCache(src RateSource, rdb goredis.Cmdable, ttl time.Duration) *RateCache {
	return &RateCache{src: src, rdb: rdb, ttl: ttl}
}

func (c *RateCache) ActiveCommissionTiers(ctx context.Context) ([]CommissionTier, error) {
	return cached(ctx, c, cacheKeyTiers, c.src.ActiveCommissionTiers)
}

func (c *RateCache) ActiveWithholdingRate(ctx context.Context) (WithholdingRate, error) {
	return cached(ctx, c, cacheKeyWithholding, c.src.ActiveWithholdingRate)
}

func (c *RateCache) JurisdictionRates(ctx context.Context) ([]JurisdictionTaxRate, error) {
	return cached(ctx, c, cacheKeyJurisdiction, c.src.JurisdictionRates)
}

func (c *RateCache) PayerProfile(ctx context.Context, userID string) (PayerProfile, error) {
	return c.src.PayerProfile(ctx, userID)
}

// Invalidate drops every cached snapshot.
func (c *RateCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, cacheKeyTiers, cacheKeyWithholding, cacheKeyJurisdiction).Err()
}

func cached[T any](ctx context.Context, c *RateCache, key string, load func(context.Context) (T, error)) (T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			return v, nil
		}
		slog.Warn("rate cache: corrupt entry", "key", key)
	case !errors.Is(err, goredis.Nil):
		slog.Warn("rate cache: get failed", "key", key, "err", err)
	}

	v, err := load(ctx)
	if err != nil {
		// Not-found results are not cached so a newly configured rate is
		// picked up on the next call.
		return v, err
	}

	if b, jerr := json.Marshal(v); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			slog.Warn("rate cache: set failed", "key", key, "err", serr)
		}
	}
	return v, nil
}
