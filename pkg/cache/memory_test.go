package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "report:2026-02-10", report{Date: "2026-02-10", Score: 62}, time.Minute))

	var got report
	require.NoError(t, mc.Get(ctx, "report:2026-02-10", &got))
	assert.Equal(t, 62, got.Score)

	err := mc.Get(ctx, "report:2026-02-11", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "scores:2026-02-10:trend:50", 1, 0)
	_ = mc.Set(ctx, "scores:2026-02-10:-:50", 2, 0)
	_ = mc.Set(ctx, "scores:2026-02-11:-:50", 3, 0)

	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("scores:2026-02-10")))

	var n int
	assert.ErrorIs(t, mc.Get(ctx, "scores:2026-02-10:trend:50", &n), ErrCacheMiss)
	assert.ErrorIs(t, mc.Get(ctx, "scores:2026-02-10:-:50", &n), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "scores:2026-02-11:-:50", &n))
	assert.Equal(t, 3, n)
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:run:2026-02-10", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock:run:2026-02-10", time.Minute)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, mc.Unlock(ctx, "lock:run:2026-02-10"))
	ok, _ = mc.TryLock(ctx, "lock:run:2026-02-10", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, 0)
	time.Sleep(time.Millisecond)
	var n int
	_ = mc.Get(ctx, "a", &n)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, 0)

	assert.NoError(t, mc.Get(ctx, "a", &n))
	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
}

func TestGetOrLoad(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (report, error) {
		calls++
		return report{Date: "2026-02-10", Score: 50}, nil
	}
	for i := 0; i < 3; i++ {
		r, err := GetOrLoad(ctx, mc, "r", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 50, r.Score)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, mc, "other", time.Minute, func(context.Context) (report, error) { return report{}, boom })
	assert.ErrorIs(t, err, boom)
	var cached report
	assert.ErrorIs(t, mc.Get(ctx, "other", &cached), ErrCacheMiss, "errors are not cached")
}
