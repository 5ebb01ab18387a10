package backend

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemStore is the embedded, thread-safe implementation of Store. It keeps one
// map per data structure, expires keys lazily, and snapshots its state to
// disk in the background when a Snapshotter is attached.
type MemStore struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	streams map[string][]StreamEntry
	scalars map[string]string
	expiry  map[string]time.Time

	lastMS  int64
	lastSeq int64

	snap *Snapshotter
	wg   sync.WaitGroup
}

// NewMemStore initializes an embedded store. It accepts existing state (from
// Snapshotter.Load) and an optional snapshotter.
func NewMemStore(state *SnapshotState, snap *Snapshotter) *MemStore {
	m := &MemStore{
		hashes:  make(map[string]map[string]string),
		zsets:   make(map[string]map[string]float64),
		streams: make(map[string][]StreamEntry),
		scalars: make(map[string]string),
		expiry:  make(map[string]time.Time),
		snap:    snap,
	}
	if state != nil {
		for k, v := range state.Hashes {
			m.hashes[k] = v
		}
		for k, v := range state.ZSets {
			m.zsets[k] = v
		}
		for k, v := range state.Streams {
			m.streams[k] = v
		}
		for k, v := range state.Scalars {
			m.scalars[k] = v
		}
		for k, v := range state.Expiry {
			m.expiry[k] = time.Unix(v, 0)
		}
	}
	return m
}

// Wait blocks until all background snapshot writes have completed.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

func (m *MemStore) Ping(context.Context) error { return nil }

func (m *MemStore) Close() error {
	m.Wait()
	return nil
}

// typeOf reports the structure held at key. Caller must hold the lock.
func (m *MemStore) typeOf(key string) string {
	if _, ok := m.hashes[key]; ok {
		return "hash"
	}
	if _, ok := m.zsets[key]; ok {
		return "zset"
	}
	if _, ok := m.streams[key]; ok {
		return "stream"
	}
	if _, ok := m.scalars[key]; ok {
		return "string"
	}
	return "none"
}

// purge removes key if its expiry has passed. Caller must hold the write lock.
func (m *MemStore) purge(key string) {
	if at, ok := m.expiry[key]; ok && time.Now().After(at) {
		m.remove(key)
	}
}

// remove deletes key from every structure. Caller must hold the write lock.
func (m *MemStore) remove(key string) {
	delete(m.hashes, key)
	delete(m.zsets, key)
	delete(m.streams, key)
	delete(m.scalars, key)
	delete(m.expiry, key)
}

// checkType purges and verifies the key either holds want or is absent.
// Caller must hold the write lock.
func (m *MemStore) checkType(key, want string) error {
	m.purge(key)
	if t := m.typeOf(key); t != "none" && t != want {
		return ErrWrongType
	}
	return nil
}

// persist schedules a background snapshot of the current state. Caller must
// hold the write lock.
func (m *MemStore) persist() {
	if m.snap == nil {
		return
	}
	state := m.copyState()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.snap.Save(state)
	}()
}

// copyState deep-copies the store for safe background saving. Caller must
// hold the lock.
func (m *MemStore) copyState() *SnapshotState {
	state := &SnapshotState{
		Hashes:  make(map[string]map[string]string, len(m.hashes)),
		ZSets:   make(map[string]map[string]float64, len(m.zsets)),
		Streams: make(map[string][]StreamEntry, len(m.streams)),
		Scalars: make(map[string]string, len(m.scalars)),
		Expiry:  make(map[string]int64, len(m.expiry)),
	}
	for k, h := range m.hashes {
		hc := make(map[string]string, len(h))
		for f, v := range h {
			hc[f] = v
		}
		state.Hashes[k] = hc
	}
	for k, z := range m.zsets {
		zc := make(map[string]float64, len(z))
		for mem, score := range z {
			zc[mem] = score
		}
		state.ZSets[k] = zc
	}
	for k, s := range m.streams {
		sc := make([]StreamEntry, len(s))
		copy(sc, s)
		state.Streams[k] = sc
	}
	for k, v := range m.scalars {
		state.Scalars[k] = v
	}
	for k, at := range m.expiry {
		state.Expiry[k] = at.Unix()
	}
	return state
}

// --- Hash operations ---

func (m *MemStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "hash"); err != nil {
		return err
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	m.persist()
	return nil
}

func (m *MemStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "hash"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *MemStore) HMGet(_ context.Context, key string, fields []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "hash"); err != nil {
		return nil, err
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = m.hashes[key][f]
	}
	return out, nil
}

func (m *MemStore) HSetField(ctx context.Context, key, field, value string) error {
	return m.HSet(ctx, key, map[string]string{field: value})
}

func (m *MemStore) HIncrBy(_ context.Context, key, field string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "hash"); err != nil {
		return 0, err
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	var cur int64
	if raw, ok := h[field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash field %q is not an integer", field)
		}
		cur = n
	}
	cur += amount
	h[field] = strconv.FormatInt(cur, 10)
	m.persist()
	return cur, nil
}

// --- Sorted-set operations ---

func (m *MemStore) ZAdd(_ context.Context, key string, members map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "zset"); err != nil {
		return err
	}
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	for mem, score := range members {
		z[mem] = score
	}
	m.persist()
	return nil
}

// sortedMembers returns the members ordered by score, ties broken by lexical
// member order. Caller must hold the lock.
func (m *MemStore) sortedMembers(key string) []string {
	z := m.zsets[key]
	members := make([]string, 0, len(z))
	for mem := range z {
		members = append(members, mem)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	return members
}

func (m *MemStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "zset"); err != nil {
		return nil, err
	}
	members := m.sortedMembers(key)
	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []string{}, nil
	}
	return members[start : stop+1], nil
}

func (m *MemStore) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "zset"); err != nil {
		return nil, err
	}
	out := []string{}
	for _, mem := range m.sortedMembers(key) {
		score := m.zsets[key][mem]
		if score >= min && score <= max {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *MemStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "zset"); err != nil {
		return 0, err
	}
	return int64(len(m.zsets[key])), nil
}

// --- Append-log operations ---

// nextStreamID generates a "<ms>-<seq>" entry ID that never goes backwards.
// Caller must hold the write lock.
func (m *MemStore) nextStreamID() string {
	ms := time.Now().UnixMilli()
	if ms <= m.lastMS {
		ms = m.lastMS
		m.lastSeq++
	} else {
		m.lastMS = ms
		m.lastSeq = 0
	}
	return fmt.Sprintf("%d-%d", ms, m.lastSeq)
}

// parseStreamID splits an entry ID into its numeric parts. Partial IDs get
// the given default sequence, matching how range bounds are interpreted.
func parseStreamID(id string, defaultSeq int64) (int64, int64) {
	msPart, seqPart, found := strings.Cut(id, "-")
	ms, _ := strconv.ParseInt(msPart, 10, 64)
	seq := defaultSeq
	if found {
		seq, _ = strconv.ParseInt(seqPart, 10, 64)
	}
	return ms, seq
}

func streamIDInRange(id, start, end string) bool {
	ms, seq := parseStreamID(id, 0)
	if start != "-" {
		sms, sseq := parseStreamID(start, 0)
		if ms < sms || (ms == sms && seq < sseq) {
			return false
		}
	}
	if end != "+" {
		ems, eseq := parseStreamID(end, int64(^uint64(0)>>1))
		if ms > ems || (ms == ems && seq > eseq) {
			return false
		}
	}
	return true
}

func (m *MemStore) XAdd(_ context.Context, key string, fields map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "stream"); err != nil {
		return "", err
	}
	id := m.nextStreamID()
	fc := make(map[string]string, len(fields))
	for f, v := range fields {
		fc[f] = v
	}
	m.streams[key] = append(m.streams[key], StreamEntry{ID: id, Fields: fc})
	m.persist()
	return id, nil
}

func (m *MemStore) XRange(_ context.Context, key, start, end string, limit int64) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "stream"); err != nil {
		return nil, err
	}
	out := []StreamEntry{}
	for _, entry := range m.streams[key] {
		if streamIDInRange(entry.ID, start, end) {
			out = append(out, entry)
			if limit > 0 && int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) XRevRange(_ context.Context, key string, limit int64) ([]StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "stream"); err != nil {
		return nil, err
	}
	entries := m.streams[key]
	out := []StreamEntry{}
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// --- Scalar operations ---

func (m *MemStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	m.scalars[key] = value
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	}
	m.persist()
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkType(key, "string"); err != nil {
		return "", err
	}
	v, ok := m.scalars[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// --- Generic key operations ---

func (m *MemStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	return m.typeOf(key) != "none", nil
}

func (m *MemStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	m.persist()
	return nil
}

func (m *MemStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	collect := func(key string) {
		m.purge(key)
		if m.typeOf(key) == "none" {
			return
		}
		if matchPattern(pattern, key) {
			seen[key] = struct{}{}
		}
	}
	for k := range m.hashes {
		collect(k)
	}
	for k := range m.zsets {
		collect(k)
	}
	for k := range m.streams {
		collect(k)
	}
	for k := range m.scalars {
		collect(k)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	if m.typeOf(key) == "none" {
		return false, nil
	}
	m.expiry[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MemStore) Type(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purge(key)
	return m.typeOf(key), nil
}
