package cache

import (
	"context"
	"testing"
	"time"

	"rewardnet/internal/domain/entity"
	"rewardnet/internal/domain/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, service.SummaryCache) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, NewRedisSummaryCache(client, ttl)
}

func TestRedisSummaryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	server, c := newTestCache(t, 5*time.Minute)

	id := uuid.New()
	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	generation, err := c.Generation(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, generation)

	summary := &entity.EarningsSummary{ParticipantID: id, TotalPoints: 30, PaidCommissions: 10, TotalCommissions: 20}
	require.NoError(t, c.Set(ctx, summary, generation))
	assert.Equal(t, 5*time.Minute, server.TTL(summaryKey(id)))

	cached, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary, cached)

	other := uuid.New()
	require.NoError(t, c.Set(ctx, &entity.EarningsSummary{ParticipantID: other}, 0))
	require.NoError(t, c.Invalidate(ctx, id, other))

	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, server.Exists(summaryKey(other)))

	generation, err = c.Generation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), generation)
	assert.Zero(t, server.TTL(generationKey(id)))

	require.NoError(t, c.Invalidate(ctx))
}

func TestRedisSummaryCache_DropsWriteAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	server, c := newTestCache(t, time.Minute)
	id := uuid.New()

	generation, err := c.Generation(ctx, id)
	require.NoError(t, err)

	// A ledger change lands between computing the summary and caching it.
	require.NoError(t, c.Invalidate(ctx, id))

	require.NoError(t, c.Set(ctx, &entity.EarningsSummary{ParticipantID: id, TotalPoints: 0}, generation))
	assert.False(t, server.Exists(summaryKey(id)))

	fresh, err := c.Generation(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, &entity.EarningsSummary{ParticipantID: id, TotalPoints: 10}, fresh))

	cached, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), cached.TotalPoints)
}

func TestRedisSummaryCache_CorruptValue(t *testing.T) {
	server, c := newTestCache(t, time.Minute)
	id := uuid.New()
	require.NoError(t, server.Set(summaryKey(id), "not json"))

	_, ok, err := c.Get(context.Background(), id)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisSummaryCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	server, c := newTestCache(t, time.Minute)
	server.Close()

	_, _, err := c.Get(ctx, uuid.New())
	assert.Error(t, err)
	_, err = c.Generation(ctx, uuid.New())
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, &entity.EarningsSummary{ParticipantID: uuid.New()}, 0))
	assert.Error(t, c.Invalidate(ctx, uuid.New()))
}

func TestConnect(t *testing.T) {
	fromURL, err := Connect("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fromURL.Close() })
	assert.Equal(t, "cache.internal:6380", fromURL.Options().Addr)
	assert.Equal(t, 2, fromURL.Options().DB)
	assert.Equal(t, "secret", fromURL.Options().Password)

	plain, err := Connect("localhost:6379")
	require.NoError(t, err)
	t.Cleanup(func() { _ = plain.Close() })
	assert.Equal(t, "localhost:6379", plain.Options().Addr)

	_, err = Connect("redis://host:notaport/abc")
	assert.Error(t, err)
}

func TestNoopSummaryCache(t *testing.T) {
	var c noopSummaryCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &entity.EarningsSummary{}, 0))
	generation, err := c.Generation(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, generation)
	_, ok, err := c.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, uuid.New()))
}
