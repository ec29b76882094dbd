package utils

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedBalance struct {
	StudentID uint   `json:"student_id"`
	Balance   string `json:"balance"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	var got cachedBalance
	found, err := GetCache(ctx, rdb, "ledger:student:1:balance", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := cachedBalance{StudentID: 1, Balance: "-400.00"}
	require.NoError(t, SetCache(ctx, rdb, "ledger:student:1:balance", want, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("ledger:student:1:balance"))

	found, err = GetCache(ctx, rdb, "ledger:student:1:balance", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, DeleteCache(ctx, rdb, "ledger:student:1:balance"))
	assert.False(t, mr.Exists("ledger:student:1:balance"))
}

func TestDeletePrefix(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	// More keys than one delete batch
	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set("ledger:student:"+strconv.Itoa(i)+":balance", "{}"))
	}
	require.NoError(t, mr.Set("admin:users:page:1:size:20", "{}"))

	require.NoError(t, DeletePrefix(ctx, rdb, "ledger:"))
	assert.Equal(t, []string{"admin:users:page:1:size:20"}, mr.Keys())
}

func TestCacheNilClient(t *testing.T) {
	ctx := context.Background()
	var dest cachedBalance

	found, err := GetCache(ctx, nil, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(ctx, nil, "k", dest, time.Minute))
	assert.NoError(t, DeleteCache(ctx, nil, "k"))
	assert.NoError(t, DeletePrefix(ctx, nil, "ledger:"))
}
