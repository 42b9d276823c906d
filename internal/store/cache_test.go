package store

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// fakeRedis implements the three commands the rate cache uses.
type fakeRedis struct {
	goredis.Cmdable
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return goredis.NewIntResult(int64(len(keys)), nil)
}

type countingSource struct {
	tierCalls, withholdingCalls int
}

func (c *countingSource) ActiveCommissionTiers(context.Context) ([]CommissionTier, error) {
	c.tierCalls++
	return []CommissionTier{{Name: "standard", Type: TierTypePercentage, Value: decimal.NewFromInt(10), Active: true}}, nil
}

func (c *countingSource) ActiveWithholdingRate(context.Context) (WithholdingRate, error) {
	c.withholdingCalls++
	return WithholdingRate{}, ErrNotFound
}

func (c *countingSource) PayerProfile(context.Context, string) (PayerProfile, error) {
	return PayerProfile{}, ErrNotFound
}

func (c *countingSource) JurisdictionRates(context.Context) ([]JurisdictionTaxRate, error) {
	return nil, nil
}

func TestRateCacheServesWithinTTL(t *testing.T) {
	src := &countingSource{}
	rdb := newFakeRedis()
	c := NewRateCache(src, rdb, 30*time.Second)
	ctx := context.Background()

	for range 3 {
		tiers, err := c.ActiveCommissionTiers(ctx)
		if err != nil {
			t.Fatalf("ActiveCommissionTiers() error = %v", err)
		}
		if len(tiers) != 1 || !tiers[0].Value.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("tiers = %+v", tiers)
		}
	}
	if src.tierCalls != 1 {
		t.Errorf("source called %d times, want 1", src.tierCalls)
	}
	if rdb.ttls[cacheKeyTiers] != 30*time.Second {
		t.Errorf("ttl = %v", rdb.ttls[cacheKeyTiers])
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := c.ActiveCommissionTiers(ctx); err != nil {
		t.Fatal(err)
	}
	if src.tierCalls != 2 {
		t.Errorf("source called %d times after invalidate, want 2", src.tierCalls)
	}
}

func TestRateCacheDoesNotCacheNotFound(t *testing.T) {
	src := &countingSource{}
	c := NewRateCache(src, newFakeRedis(), time.Minute)

	for range 2 {
		if _, err := c.ActiveWithholdingRate(context.Background()); !IsNotFound(err) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if src.withholdingCalls != 2 {
		t.Errorf("source called %d times, want 2", src.withholdingCalls)
	}
}
