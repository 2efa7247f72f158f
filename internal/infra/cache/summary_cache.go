// Package cache keeps computed earnings summaries in Redis between ledger changes.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"rewardnet/config"
	"rewardnet/internal/domain/entity"
	"rewardnet/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const (
	summaryKeyPrefix    = "rewardnet:summary:"
	generationKeyPrefix = "rewardnet:summary-gen:"
)

var errStaleSummary = errors.New("summary invalidated while it was computed")

// Connect builds a client from a redis:// URL or a plain host:port.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}

		return redis.NewClient(opt), nil
	}

	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func summaryKey(participantID uuid.UUID) string {
	return summaryKeyPrefix + participantID.String()
}

// generationKey is never given a TTL.
func generationKey(participantID uuid.UUID) string {
	return generationKeyPrefix + participantID.String()
}

// redisSummaryCache implements service.SummaryCache with JSON values and a fixed TTL.
// Writes are guarded by a per-participant generation counter under WATCH.
type redisSummaryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSummaryCache wraps an existing client.
func NewRedisSummaryCache(client redis.UniversalClient, ttl time.Duration) service.SummaryCache {
	return &redisSummaryCache{client: client, ttl: ttl}
}

func (c *redisSummaryCache) Get(ctx context.Context, participantID uuid.UUID) (*entity.EarningsSummary, bool, error) {
	raw, err := c.client.Get(ctx, summaryKey(participantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read cached summary")
	}

	var summary entity.EarningsSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false, errors.Wrap(err, "decode cached summary")
	}

	return &summary, true, nil
}

func (c *redisSummaryCache) Generation(ctx context.Context, participantID uuid.UUID) (int64, error) {
	return readGeneration(ctx, c.client, participantID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, client getter, participantID uuid.UUID) (int64, error) {
	generation, err := client.Get(ctx, generationKey(participantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read summary generation")
	}

	return generation, nil
}

func (c *redisSummaryCache) Set(ctx context.Context, summary *entity.EarningsSummary, generation int64) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return errors.WithStack(err)
	}

	genKey := generationKey(summary.ParticipantID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, summary.ParticipantID)
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleSummary
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, summaryKey(summary.ParticipantID), raw, c.ttl)

			return nil
		})

		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStaleSummary), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return errors.Wrap(err, "write cached summary")
	}
}

func (c *redisSummaryCache) Invalidate(ctx context.Context, participantIDs ...uuid.UUID) error {
	if len(participantIDs) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range participantIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, summaryKey(id))
		}

		return nil
	})

	return errors.Wrap(err, "drop cached summaries")
}

// noopSummaryCache always misses.
type noopSummaryCache struct{}

func (noopSummaryCache) Get(context.Context, uuid.UUID) (*entity.EarningsSummary, bool, error) {
	return nil, false, nil
}

func (noopSummaryCache) Generation(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (noopSummaryCache) Set(context.Context, *entity.EarningsSummary, int64) error {
	return nil
}

func (noopSummaryCache) Invalidate(context.Context, ...uuid.UUID) error {
	return nil
}

// SummaryCacheParams holds dependencies for SummaryCache, injected by Fx
type SummaryCacheParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewSummaryCache returns a Redis-backed cache when configured, otherwise one that never hits.
func NewSummaryCache(params SummaryCacheParams) (service.SummaryCache, error) {
	cfg := params.Config.Redis
	if cfg == nil || cfg.URL == "" {
		params.Logger.Info("Redis not configured, summaries are computed on every request")

		return noopSummaryCache{}, nil
	}

	client, err := Connect(cfg.URL)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// The cache is optional; summaries fall back to the database.
				params.Logger.Warn("Redis ping failed", slog.Any("error", err))
			}

			return nil
		},
		OnStop: func(context.Context) error {
			return errors.WithStack(client.Close())
		},
	})

	params.Logger.Info("Summary cache enabled", slog.Duration("ttl", cfg.SummaryTTL))

	return NewRedisSummaryCache(client, cfg.SummaryTTL), nil
}

// Module provides the summary cache FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewSummaryCache),
)
