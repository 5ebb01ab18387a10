package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// brokenStore fails every operation, standing in for a dead backend.
type brokenStore struct{}

func (brokenStore) HSet(context.Context, string, map[string]string) error { return errBackendDown }
func (brokenStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, errBackendDown
}
func (brokenStore) HMGet(context.Context, string, []string) ([]string, error) {
	return nil, errBackendDown
}
func (brokenStore) HSetField(context.Context, string, string, string) error { return errBackendDown }
func (brokenStore) HIncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, errBackendDown
}
func (brokenStore) ZAdd(context.Context, string, map[string]float64) error { return errBackendDown }
func (brokenStore) ZRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, errBackendDown
}
func (brokenStore) ZRangeByScore(context.Context, string, float64, float64) ([]string, error) {
	return nil, errBackendDown
}
func (brokenStore) ZCard(context.Context, string) (int64, error) { return 0, errBackendDown }
func (brokenStore) XAdd(context.Context, string, map[string]string) (string, error) {
	return "", errBackendDown
}
func (brokenStore) XRange(context.Context, string, string, string, int64) ([]StreamEntry, error) {
	return nil, errBackendDown
}
func (brokenStore) XRevRange(context.Context, string, int64) ([]StreamEntry, error) {
	return nil, errBackendDown
}
func (brokenStore) Set(context.Context, string, string, time.Duration) error { return errBackendDown }
func (brokenStore) Get(context.Context, string) (string, error)             { return "", errBackendDown }
func (brokenStore) Exists(context.Context, string) (bool, error)            { return false, errBackendDown }
func (brokenStore) Del(context.Context, string) error                       { return errBackendDown }
func (brokenStore) Keys(context.Context, string) ([]string, error)          { return nil, errBackendDown }
func (brokenStore) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, errBackendDown
}
func (brokenStore) Type(context.Context, string) (string, error) { return "", errBackendDown }
func (brokenStore) Ping(context.Context) error                   { return errBackendDown }
func (brokenStore) Close() error                                 { return nil }

// Every capability client must swallow backend failures and hand the caller
// a neutral value instead of an error.
func TestClients_NeutralValuesOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	var store Store = brokenStore{}

	hash := NewHashClient(store)
	assert.False(t, hash.SetFields(ctx, "k", map[string]string{"f": "v"}, 0))
	assert.Empty(t, hash.GetAll(ctx, "k"))
	vals := hash.GetFields(ctx, "k", []string{"a", "b"})
	require.Len(t, vals, 2)
	assert.Equal(t, []string{"", ""}, vals)
	assert.False(t, hash.SetField(ctx, "k", "f", "v"))
	n, ok := hash.Increment(ctx, "k", "f", 1)
	assert.Zero(t, n)
	assert.False(t, ok)

	zset := NewSortedSetClient(store)
	assert.False(t, zset.AddMembers(ctx, "k", map[string]float64{"m": 1}))
	assert.Empty(t, zset.RangeByRank(ctx, "k", 0, -1))
	assert.Empty(t, zset.RangeByScore(ctx, "k", 0, 1))
	assert.Zero(t, zset.Cardinality(ctx, "k"))

	stream := NewStreamClient(store)
	id, ok := stream.Append(ctx, "k", map[string]string{"f": "v"})
	assert.Empty(t, id)
	assert.False(t, ok)
	assert.Empty(t, stream.RangeForward(ctx, "k", "-", "+", 0))
	assert.Empty(t, stream.RangeReverse(ctx, "k", 5))

	scalar := NewScalarClient(store)
	assert.False(t, scalar.Set(ctx, "k", "v", 0))
	assert.Empty(t, scalar.Get(ctx, "k"))
	assert.False(t, scalar.SetJSON(ctx, "k", map[string]string{"a": "b"}, 0))
	var target map[string]string
	assert.False(t, scalar.GetJSON(ctx, "k", &target))

	// Shared fail-soft helpers.
	assert.False(t, hash.Exists(ctx, "k"))
	assert.False(t, hash.Delete(ctx, "k"))
	assert.Empty(t, hash.KeysMatching(ctx, "*"))
	assert.False(t, hash.SetExpiry(ctx, "k", time.Second))
	assert.Empty(t, hash.KeyType(ctx, "k"))
}

func TestClients_HappyPath(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore(nil, nil)

	hash := NewHashClient(ms)
	require.True(t, hash.SetFields(ctx, "askdeck:test:h", map[string]string{"a": "1"}, 0))
	assert.Equal(t, map[string]string{"a": "1"}, hash.GetAll(ctx, "askdeck:test:h"))
	n, ok := hash.Increment(ctx, "askdeck:test:h", "a", 2)
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)

	scalar := NewScalarClient(ms)
	require.True(t, scalar.SetJSON(ctx, "askdeck:test:s", map[string]int{"x": 7}, 0))
	var out map[string]int
	require.True(t, scalar.GetJSON(ctx, "askdeck:test:s", &out))
	assert.Equal(t, 7, out["x"])

	// Absent scalar reads are quiet misses, not failures worth logging.
	assert.Empty(t, scalar.Get(ctx, "askdeck:test:absent"))
	assert.False(t, scalar.GetJSON(ctx, "askdeck:test:absent", &out))
}
