package cache

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// NullCacheValue marks a cached miss so repeated lookups of absent rows do
// not reach the database.
const NullCacheValue = "$NULL$"

// GetWithCached reads key from the cache and falls back to fn on a miss.
// Results for which isEmpty reports true are cached as NullCacheValue for
// emptyTTL. Cache errors never fail the read.
//
// Example:
//
//	d, err := GetWithCached(ctx, c, "competition:descriptor:42", time.Hour, time.Minute,
//		func(d *Descriptor) bool { return d == nil },
//		marshalDescriptor,
//		unmarshalDescriptor,
//		func(ctx context.Context) (*Descriptor, error) { return loadFromDB(ctx, "42") })
func GetWithCached[T any](
	ctx context.Context,
	cache Cache,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) string,
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if cached, err := cache.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if result, err := unmarshal(cached); err == nil {
			return result, nil
		}
	}

	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if isEmpty(data) {
		_ = cache.Set(ctx, key, NullCacheValue, emptyTTL)
		return zero, nil
	}

	_ = cache.Set(ctx, key, marshal(data), ttl)
	return data, nil
}

// UpdateCached runs fn and invalidates key once it succeeds.
func UpdateCached(ctx context.Context, cache Cache, key string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	_ = cache.Del(ctx, key)
	return nil
}

// JitterTTL shortens ttl by up to 10% so keys written together do not expire
// together.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
