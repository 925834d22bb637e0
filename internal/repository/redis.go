package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usageTTL    = 48 * time.Hour
	equityKey   = "equity:samples"
	equityKeep  = 24 * time.Hour
	usagePrefix = "usage:"
)

// RedisUsageRepo tracks daily order flow and an equity time series used to
// compute rolling drawdown. Keys expire on their own; nothing here needs a
// cleanup job.
type RedisUsageRepo struct {
	rdb *redis.Client
}

func NewRedisUsageRepo(rdb *redis.Client) *RedisUsageRepo {
	return &RedisUsageRepo{rdb: rdb}
}

// Ping verifies the connection so callers can fall back to memory early.
func (r *RedisUsageRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func usageKey(day time.Time) string {
	return usagePrefix + day.UTC().Format("2006-01-02")
}

func (r *RedisUsageRepo) AddDailyUsage(ctx context.Context, orders int, volume float64) error {
	key := usageKey(time.Now())
	pipe := r.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "orders", int64(orders))
	pipe.HIncrByFloat(ctx, key, "volume", volume)
	pipe.Expire(ctx, key, usageTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context) (int, float64, error) {
	vals, err := r.rdb.HGetAll(ctx, usageKey(time.Now())).Result()
	if err != nil {
		return 0, 0, err
	}
	orders, _ := strconv.Atoi(vals["orders"])
	volume, _ := strconv.ParseFloat(vals["volume"], 64)
	return orders, volume, nil
}

// RecordEquity appends one equity sample scored by unix millis.
func (r *RedisUsageRepo) RecordEquity(ctx context.Context, equity float64) error {
	now := time.Now()
	member := fmt.Sprintf("%d:%.8f", now.UnixNano(), equity)
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, equityKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	cutoff := strconv.FormatInt(now.Add(-equityKeep).UnixMilli(), 10)
	pipe.ZRemRangeByScore(ctx, equityKey, "-inf", cutoff)
	_, err := pipe.Exec(ctx)
	return err
}

// Drawdown24h returns the percent decline from the 24h equity peak to the
// latest sample. Zero when the series is flat, rising or too short.
func (r *RedisUsageRepo) Drawdown24h(ctx context.Context) (float64, error) {
	members, err := r.rdb.ZRangeByScore(ctx, equityKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(time.Now().Add(-equityKeep).UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(members) < 2 {
		return 0, nil
	}
	peak, latest := 0.0, 0.0
	for i, m := range members {
		v := parseEquityMember(m)
		if v > peak {
			peak = v
		}
		if i == len(members)-1 {
			latest = v
		}
	}
	return drawdownPct(peak, latest), nil
}

func parseEquityMember(m string) float64 {
	for i := 0; i < len(m); i++ {
		if m[i] == ':' {
			v, _ := strconv.ParseFloat(m[i+1:], 64)
			return v
		}
	}
	return 0
}

func drawdownPct(peak, latest float64) float64 {
	if peak <= 0 || latest >= peak {
		return 0
	}
	return (peak - latest) / peak * 100
}
