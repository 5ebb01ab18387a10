package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askdeck-dev/askdeck/internal/config"
)

// RedisStore is the production implementation of Store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store. The connection is lazy; call
// Ping to verify reachability.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// --- Hash operations ---

func (r *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	return r.client.HSet(ctx, key, fields).Err()
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *RedisStore) HMGet(ctx context.Context, key string, fields []string) ([]string, error) {
	raw, err := r.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(fields))
	for i, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
		} else {
			out[i] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (r *RedisStore) HSetField(ctx context.Context, key, field, value string) error {
	return r.client.HSet(ctx, key, field, value).Err()
}

func (r *RedisStore) HIncrBy(ctx context.Context, key, field string, amount int64) (int64, error) {
	return r.client.HIncrBy(ctx, key, field, amount).Result()
}

// --- Sorted-set operations ---

func (r *RedisStore) ZAdd(ctx context.Context, key string, members map[string]float64) error {
	zs := make([]redis.Z, 0, len(members))
	for member, score := range members {
		zs = append(zs, redis.Z{Member: member, Score: score})
	}
	return r.client.ZAdd(ctx, key, zs...).Err()
}

func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRange(ctx, key, start, stop).Result()
}

func (r *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
}

func (r *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

// --- Append-log operations ---

func (r *RedisStore) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		values[f] = v
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: values}).Result()
}

func (r *RedisStore) XRange(ctx context.Context, key, start, end string, limit int64) ([]StreamEntry, error) {
	var msgs []redis.XMessage
	var err error
	if limit > 0 {
		msgs, err = r.client.XRangeN(ctx, key, start, end, limit).Result()
	} else {
		msgs, err = r.client.XRange(ctx, key, start, end).Result()
	}
	if err != nil {
		return nil, err
	}
	return toStreamEntries(msgs), nil
}

func (r *RedisStore) XRevRange(ctx context.Context, key string, limit int64) ([]StreamEntry, error) {
	var msgs []redis.XMessage
	var err error
	if limit > 0 {
		msgs, err = r.client.XRevRangeN(ctx, key, "+", "-", limit).Result()
	} else {
		msgs, err = r.client.XRevRange(ctx, key, "+", "-").Result()
	}
	if err != nil {
		return nil, err
	}
	return toStreamEntries(msgs), nil
}

func toStreamEntries(msgs []redis.XMessage) []StreamEntry {
	entries := make([]StreamEntry, 0, len(msgs))
	for _, msg := range msgs {
		fields := make(map[string]string, len(msg.Values))
		for f, v := range msg.Values {
			if s, ok := v.(string); ok {
				fields[f] = s
			} else {
				fields[f] = fmt.Sprint(v)
			}
		}
		entries = append(entries, StreamEntry{ID: msg.ID, Fields: fields})
	}
	return entries
}

// --- Scalar operations ---

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

// --- Generic key operations ---

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys enumerates keys by glob pattern. O(total keys) at the backend; it is
// the load-bearing cost of username lookups and reverse joins.
func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.Expire(ctx, key, ttl).Result()
}

func (r *RedisStore) Type(ctx context.Context, key string) (string, error) {
	return r.client.Type(ctx, key).Result()
}
