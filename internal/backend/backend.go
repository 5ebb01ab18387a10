// Package backend provides the typed clients over the key-value store that
// every other component talks through. The raw Store surface has two
// implementations: a Redis client for production and an embedded in-process
// store for dev mode and tests.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/askdeck-dev/askdeck/internal/config"
)

var (
	// ErrKeyNotFound is returned by raw scalar reads when the key does not
	// exist. The fail-soft clients translate it to an empty result.
	ErrKeyNotFound = errors.New("key not found")
	// ErrWrongType is returned when an operation is applied to a key
	// holding a different data structure.
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
)

// StreamEntry is one append-log record: a backend-assigned ID of the form
// "<unix-ms>-<seq>" plus the stored fields.
type StreamEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Store is the raw primitive surface of the key-value backend. Operations
// return errors; the capability clients in this package are the fail-soft
// boundary that terminates them.
type Store interface {
	// Hash operations.
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HMGet(ctx context.Context, key string, fields []string) ([]string, error)
	HSetField(ctx context.Context, key, field, value string) error
	HIncrBy(ctx context.Context, key, field string, amount int64) (int64, error)

	// Sorted-set operations.
	ZAdd(ctx context.Context, key string, members map[string]float64) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// Append-log operations (legacy variant).
	XAdd(ctx context.Context, key string, fields map[string]string) (string, error)
	XRange(ctx context.Context, key, start, end string, limit int64) ([]StreamEntry, error)
	XRevRange(ctx context.Context, key string, limit int64) ([]StreamEntry, error)

	// Scalar operations. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	// Generic key operations.
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Type(ctx context.Context, key string) (string, error)

	Ping(ctx context.Context) error
	Close() error
}

// New initializes a Store based on the configuration. In auto mode it tries
// Redis first and falls back to the embedded store, so the app does not care
// which one it got.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Backend.Mode {
	case config.ModeRedis:
		return dialRedis(cfg)
	case config.ModeEmbedded:
		return openEmbedded(cfg)
	default:
		store, err := dialRedis(cfg)
		if err == nil {
			return store, nil
		}
		slog.Warn("redis unreachable, falling back to embedded store",
			"addr", cfg.Backend.Redis.Addr(), "error", err)
		return openEmbedded(cfg)
	}
}

func dialRedis(cfg *config.Config) (Store, error) {
	store := NewRedisStore(cfg.Backend.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func openEmbedded(cfg *config.Config) (Store, error) {
	snap, err := NewSnapshotter(cfg.Backend.DataDir)
	if err != nil {
		return nil, err
	}
	state, err := snap.Load()
	if err != nil {
		slog.Warn("could not load snapshot, starting empty", "error", err)
		state = nil
	}
	return NewMemStore(state, snap), nil
}
