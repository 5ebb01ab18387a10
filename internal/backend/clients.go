package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// The capability clients below are the fail-soft boundary: on any backend
// error they log and return a neutral value (empty collection, "", false, 0)
// instead of propagating. Callers therefore cannot distinguish "key absent"
// from "backend unreachable"; that is the documented availability-first
// tradeoff and must not be "fixed".

type failSoft struct {
	store Store
}

func (f failSoft) swallow(op, key string, err error) {
	if err != nil {
		slog.Warn("backend operation failed", "op", op, "key", key, "error", err)
	}
}

// Generic key operations shared by every capability client.

func (f failSoft) Exists(ctx context.Context, key string) bool {
	ok, err := f.store.Exists(ctx, key)
	if err != nil {
		f.swallow("exists", key, err)
		return false
	}
	return ok
}

func (f failSoft) Delete(ctx context.Context, key string) bool {
	if err := f.store.Del(ctx, key); err != nil {
		f.swallow("del", key, err)
		return false
	}
	return true
}

func (f failSoft) KeysMatching(ctx context.Context, pattern string) []string {
	keys, err := f.store.Keys(ctx, pattern)
	if err != nil {
		f.swallow("keys", pattern, err)
		return []string{}
	}
	return keys
}

func (f failSoft) SetExpiry(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := f.store.Expire(ctx, key, ttl)
	if err != nil {
		f.swallow("expire", key, err)
		return false
	}
	return ok
}

func (f failSoft) KeyType(ctx context.Context, key string) string {
	t, err := f.store.Type(ctx, key)
	if err != nil {
		f.swallow("type", key, err)
		return ""
	}
	return t
}

// HashClient provides the map/hash capability.
type HashClient struct {
	failSoft
}

// NewHashClient wraps a store with fail-soft hash operations.
func NewHashClient(store Store) *HashClient {
	return &HashClient{failSoft{store: store}}
}

// SetFields writes multiple hash fields, optionally attaching a TTL.
func (h *HashClient) SetFields(ctx context.Context, key string, fields map[string]string, ttl time.Duration) bool {
	if err := h.store.HSet(ctx, key, fields); err != nil {
		h.swallow("hset", key, err)
		return false
	}
	if ttl > 0 {
		if _, err := h.store.Expire(ctx, key, ttl); err != nil {
			h.swallow("expire", key, err)
		}
	}
	return true
}

// GetAll returns every field of the hash, or an empty map.
func (h *HashClient) GetAll(ctx context.Context, key string) map[string]string {
	fields, err := h.store.HGetAll(ctx, key)
	if err != nil {
		h.swallow("hgetall", key, err)
		return map[string]string{}
	}
	return fields
}

// GetFields returns the requested fields in order; missing fields are "".
func (h *HashClient) GetFields(ctx context.Context, key string, fields []string) []string {
	values, err := h.store.HMGet(ctx, key, fields)
	if err != nil {
		h.swallow("hmget", key, err)
		return make([]string, len(fields))
	}
	return values
}

// SetField overwrites a single hash field.
func (h *HashClient) SetField(ctx context.Context, key, field, value string) bool {
	if err := h.store.HSetField(ctx, key, field, value); err != nil {
		h.swallow("hset", key, err)
		return false
	}
	return true
}

// Increment adds amount to a numeric hash field. The bool is false when the
// backend failed and the returned value is meaningless.
func (h *HashClient) Increment(ctx context.Context, key, field string, amount int64) (int64, bool) {
	val, err := h.store.HIncrBy(ctx, key, field, amount)
	if err != nil {
		h.swallow("hincrby", key, err)
		return 0, false
	}
	return val, true
}

// SortedSetClient provides the score-ordered set capability.
type SortedSetClient struct {
	failSoft
}

// NewSortedSetClient wraps a store with fail-soft sorted-set operations.
func NewSortedSetClient(store Store) *SortedSetClient {
	return &SortedSetClient{failSoft{store: store}}
}

// AddMembers inserts member -> score pairs.
func (z *SortedSetClient) AddMembers(ctx context.Context, key string, members map[string]float64) bool {
	if err := z.store.ZAdd(ctx, key, members); err != nil {
		z.swallow("zadd", key, err)
		return false
	}
	return true
}

// RangeByRank returns members between two rank positions, end inclusive and
// possibly negative (Redis semantics).
func (z *SortedSetClient) RangeByRank(ctx context.Context, key string, start, stop int64) []string {
	members, err := z.store.ZRange(ctx, key, start, stop)
	if err != nil {
		z.swallow("zrange", key, err)
		return []string{}
	}
	return members
}

// RangeByScore returns members whose score lies in [min, max].
func (z *SortedSetClient) RangeByScore(ctx context.Context, key string, min, max float64) []string {
	members, err := z.store.ZRangeByScore(ctx, key, min, max)
	if err != nil {
		z.swallow("zrangebyscore", key, err)
		return []string{}
	}
	return members
}

// Cardinality returns the member count.
func (z *SortedSetClient) Cardinality(ctx context.Context, key string) int64 {
	n, err := z.store.ZCard(ctx, key)
	if err != nil {
		z.swallow("zcard", key, err)
		return 0
	}
	return n
}

// StreamClient provides the append-log capability (legacy variant).
type StreamClient struct {
	failSoft
}

// NewStreamClient wraps a store with fail-soft append-log operations.
func NewStreamClient(store Store) *StreamClient {
	return &StreamClient{failSoft{store: store}}
}

// Append adds an entry and returns its generated ID, or ("", false).
func (s *StreamClient) Append(ctx context.Context, key string, fields map[string]string) (string, bool) {
	id, err := s.store.XAdd(ctx, key, fields)
	if err != nil {
		s.swallow("xadd", key, err)
		return "", false
	}
	return id, true
}

// RangeForward reads entries from start to end in log order. Use "-" and "+"
// for the open bounds; limit 0 means unbounded.
func (s *StreamClient) RangeForward(ctx context.Context, key, start, end string, limit int64) []StreamEntry {
	entries, err := s.store.XRange(ctx, key, start, end, limit)
	if err != nil {
		s.swallow("xrange", key, err)
		return []StreamEntry{}
	}
	return entries
}

// RangeReverse reads the most recent entries first.
func (s *StreamClient) RangeReverse(ctx context.Context, key string, limit int64) []StreamEntry {
	entries, err := s.store.XRevRange(ctx, key, limit)
	if err != nil {
		s.swallow("xrevrange", key, err)
		return []StreamEntry{}
	}
	return entries
}

// ScalarClient provides the plain string capability.
type ScalarClient struct {
	failSoft
}

// NewScalarClient wraps a store with fail-soft scalar operations.
func NewScalarClient(store Store) *ScalarClient {
	return &ScalarClient{failSoft{store: store}}
}

// Set stores a string value, optionally with a TTL.
func (s *ScalarClient) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.swallow("set", key, err)
		return false
	}
	return true
}

// Get returns the value, or "" when the key is absent or the backend failed.
func (s *ScalarClient) Get(ctx context.Context, key string) string {
	val, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.swallow("get", key, err)
		}
		return ""
	}
	return val
}

// SetJSON stores a JSON-encoded value.
func (s *ScalarClient) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.swallow("setjson", key, err)
		return false
	}
	return s.Set(ctx, key, string(data), ttl)
}

// GetJSON decodes the stored value into target; false when absent, invalid,
// or the backend failed.
func (s *ScalarClient) GetJSON(ctx context.Context, key string, target any) bool {
	raw := s.Get(ctx, key)
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		s.swallow("getjson", key, err)
		return false
	}
	return true
}
