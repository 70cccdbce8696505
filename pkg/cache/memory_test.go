package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", payload{Name: "a", Values: []float64{1.5, 2}}, time.Minute))
	var got payload
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Values: []float64{1.5, 2}}, got)

	err := mc.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Minute))
	now = now.Add(61 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()
	var v int

	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Set(ctx, "b", 2, 0)
	require.NoError(t, mc.Get(ctx, "a", &v)) // b is now least recently used
	_ = mc.Set(ctx, "c", 3, 0)

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()
	for _, k := range []string{
		"forecast:hourly-24:2024-06-01T00:00:abcd1234",
		"forecast:weekly:2024-06-01T00:00:ffff0000",
		"forecast:hourly-24:2024-06-02T00:00:abcd1234",
		"weather:hourly:2024-06-01T00",
	} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	n, err := mc.DeleteByPattern(ctx, "forecast:*:2024-06-01T00:00:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, mc.Len())

	_, err = mc.DeleteByPattern(ctx, "[")
	assert.Error(t, err)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
}

func TestHashValues(t *testing.T) {
	a := HashValues([]float64{1000, 1000.001})
	b := HashValues([]float64{1000.0, 1000.004})
	assert.Equal(t, a, b, "values equal to two decimals hash the same")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashValues([]float64{1000, 1000.01}))
}
