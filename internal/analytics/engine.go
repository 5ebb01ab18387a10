// Package analytics is the event-indexing and analytics-query engine. It
// owns the canonical event records and every derived index, and answers the
// aggregate queries by fanning out across those indices.
package analytics

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
	"github.com/askdeck-dev/askdeck/pkg/schema"
)

// Engine is stateless between calls; all state lives in the backend. The
// write path fans one event out to the canonical record, four indices, and
// the per-user aggregate counters without cross-key atomicity, so readers
// must treat absence from an index as "maybe not yet indexed".
type Engine struct {
	hash     *backend.HashClient
	zset     *backend.SortedSetClient
	stream   *backend.StreamClient
	defaults config.DefaultsConfig
	now      func() time.Time

	mu     sync.Mutex
	lastMS int64
}

// New creates an engine over the given backend.
func New(store backend.Store, cfg *config.Config) *Engine {
	return &Engine{
		hash:     backend.NewHashClient(store),
		zset:     backend.NewSortedSetClient(store),
		stream:   backend.NewStreamClient(store),
		defaults: cfg.Defaults,
		now:      time.Now,
	}
}

// nextEventID returns a millisecond-precision timestamp string, bumped past
// the previous one so ids from this process never repeat. Uniqueness across
// processes stays best-effort: a collision overwrites the earlier record,
// which the design accepts.
func (e *Engine) nextEventID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ms := e.now().UnixMilli()
	if ms <= e.lastMS {
		ms = e.lastMS + 1
	}
	e.lastMS = ms
	return strconv.FormatInt(ms, 10)
}

// LogEvent persists one immutable event record and updates the derived
// indices in sequence. It returns "" only when the canonical record write
// failed; index updates are best-effort and never rolled back.
func (e *Engine) LogEvent(ctx context.Context, userID, question, response, category, difficulty string) string {
	if category == "" {
		category = e.defaults.Category
	}
	if difficulty == "" {
		difficulty = e.defaults.Difficulty
	}
	eventID := e.nextEventID()
	createdAt := e.now().Unix()

	record := map[string]string{
		"event_id":   eventID,
		"user_id":    userID,
		"question":   question,
		"response":   response,
		"category":   category,
		"difficulty": difficulty,
		"created_at": strconv.FormatInt(createdAt, 10),
	}
	if !e.hash.SetFields(ctx, backend.EventKey(userID, eventID), record, 0) {
		return ""
	}

	e.indexEvent(ctx, userID, eventID, category, difficulty, createdAt)
	return eventID
}

// indexEvent performs the derived-index fan-out for one event.
func (e *Engine) indexEvent(ctx context.Context, userID, eventID, category, difficulty string, createdAt int64) {
	score := float64(createdAt)
	member := map[string]float64{eventID: score}

	e.zset.AddMembers(ctx, backend.UserTimestampsKey(userID), member)
	e.zset.AddMembers(ctx, backend.GlobalIndexKey(), member)
	e.zset.AddMembers(ctx, backend.CategoryIndexKey(category), member)
	e.zset.AddMembers(ctx, backend.DifficultyCategoryKey(difficulty, category), member)

	agg := backend.UserAggregateKey(userID)
	e.hash.Increment(ctx, agg, "total_questions", 1)
	e.hash.SetField(ctx, agg, "last_question_timestamp", strconv.FormatInt(createdAt, 10))
}

// GetEventDetails looks up one event record directly. O(1).
func (e *Engine) GetEventDetails(ctx context.Context, userID, eventID string) (schema.Event, bool) {
	fields := e.hash.GetAll(ctx, backend.EventKey(userID, eventID))
	if len(fields) == 0 {
		return schema.Event{}, false
	}
	return parseEvent(eventID, fields), true
}

// GetUserHistory enumerates all of the user's event records, newest first,
// truncated to count. Never returns more than count records; count zero
// yields an empty list. It scans the canonical records rather than the
// per-user index, trading index benefit for read-your-writes simplicity.
func (e *Engine) GetUserHistory(ctx context.Context, userID string, count int) []schema.Event {
	if count < 0 {
		count = 0
	}
	events := e.scanUserEvents(ctx, userID)
	sortNewestFirst(events)
	if len(events) > count {
		events = events[:count]
	}
	return events
}

// SearchQuestions substring-matches the user's question texts, case
// insensitively. An empty term after trimming yields an empty result.
func (e *Engine) SearchQuestions(ctx context.Context, userID, term string) []schema.Event {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []schema.Event{}
	}
	matches := []schema.Event{}
	for _, ev := range e.scanUserEvents(ctx, userID) {
		if strings.Contains(strings.ToLower(ev.Question), term) {
			matches = append(matches, ev)
		}
	}
	sortNewestFirst(matches)
	return matches
}

// GetUserAnalytics aggregates one user's events, optionally within a time
// window. An inverted window fails closed to an empty aggregate.
func (e *Engine) GetUserAnalytics(ctx context.Context, userID string, startTime, endTime *int64) schema.UserAnalytics {
	agg := schema.UserAnalytics{
		Categories:      map[string]int{},
		Difficulties:    map[string]int{},
		RecentQuestions: []schema.Event{},
	}
	ids, ok := e.indexRange(ctx, backend.UserTimestampsKey(userID), startTime, endTime)
	if !ok {
		return agg
	}
	events := []schema.Event{}
	for _, id := range ids {
		// Index members without a resolvable record are treated as not
		// yet indexed, never as an error.
		fields := e.hash.GetAll(ctx, backend.EventKey(userID, id))
		if len(fields) == 0 {
			continue
		}
		events = append(events, parseEvent(id, fields))
	}
	agg.TotalQuestions = len(events)
	for _, ev := range events {
		agg.Categories[orUnknown(ev.Category)]++
		agg.Difficulties[orUnknown(ev.Difficulty)]++
	}
	sortNewestFirst(events)
	if len(events) > 5 {
		events = events[:5]
	}
	agg.RecentQuestions = events
	return agg
}

// GetGlobalAnalytics aggregates every event in the window. The global index
// stores only ids, so each one is reverse-joined through the per-user event
// namespaces — an O(events x users) worst case inherent to the index design.
func (e *Engine) GetGlobalAnalytics(ctx context.Context, startTime, endTime *int64) schema.GlobalAnalytics {
	agg := schema.GlobalAnalytics{
		CategoryDistribution:   map[string]int{},
		DifficultyDistribution: map[string]int{},
		TimeRange:              schema.TimeRange{Start: startTime, End: endTime},
	}
	ids, ok := e.indexRange(ctx, backend.GlobalIndexKey(), startTime, endTime)
	if !ok {
		return agg
	}
	agg.TotalQuestions = len(ids)
	for _, id := range ids {
		ev, found := e.reverseJoin(ctx, id)
		if !found {
			continue
		}
		agg.CategoryDistribution[orUnknown(ev.Category)]++
		agg.DifficultyDistribution[orUnknown(ev.Difficulty)]++
	}
	return agg
}

// GetCategoryAnalytics aggregates one category's events in the window. The
// difficulty breakdown is computed twice on purpose: from the joined records
// and from the sibling difficulty-index cardinalities. The two can diverge
// after partial write failures and are reported separately.
func (e *Engine) GetCategoryAnalytics(ctx context.Context, category string, startTime, endTime *int64) schema.CategoryAnalytics {
	agg := schema.CategoryAnalytics{
		Category:               category,
		DifficultyDistribution: map[string]int{},
		DifficultyTotals:       map[string]int{},
		Questions:              []schema.Event{},
		TimeRange:              schema.TimeRange{Start: startTime, End: endTime},
	}
	ids, ok := e.indexRange(ctx, backend.CategoryIndexKey(category), startTime, endTime)
	if !ok {
		return agg
	}
	events := []schema.Event{}
	for _, id := range ids {
		ev, found := e.reverseJoin(ctx, id)
		if !found {
			continue
		}
		events = append(events, ev)
		agg.DifficultyDistribution[orUnknown(ev.Difficulty)]++
	}
	agg.TotalQuestions = len(events)

	pattern := backend.DifficultyCategoryPattern(category)
	for _, key := range e.zset.KeysMatching(ctx, pattern) {
		difficulty := difficultyFromSiblingKey(key)
		if difficulty == "" {
			continue
		}
		agg.DifficultyTotals[difficulty] = int(e.zset.Cardinality(ctx, key))
	}

	sortNewestFirst(events)
	if len(events) > 10 {
		events = events[:10]
	}
	agg.Questions = events
	return agg
}

// GetTimeBasedAnalytics buckets the user's events by hour over the trailing
// window.
func (e *Engine) GetTimeBasedAnalytics(ctx context.Context, userID string, hours int) schema.TimeAnalytics {
	endTime := e.now().Unix()
	startTime := endTime - int64(hours)*3600
	agg := schema.TimeAnalytics{
		TimePeriodHours:    hours,
		HourlyDistribution: map[int64]int{},
		StartTime:          startTime,
		EndTime:            endTime,
	}
	ids := e.zset.RangeByScore(ctx, backend.UserTimestampsKey(userID), float64(startTime), float64(endTime))
	agg.TotalQuestions = len(ids)
	for _, id := range ids {
		fields := e.hash.GetAll(ctx, backend.EventKey(userID, id))
		if len(fields) == 0 {
			continue
		}
		ts := parseInt(fields["created_at"])
		hour := ts - ts%3600
		agg.HourlyDistribution[hour]++
	}
	return agg
}

// UserQuestionCount is the per-user index cardinality.
func (e *Engine) UserQuestionCount(ctx context.Context, userID string) int64 {
	return e.zset.Cardinality(ctx, backend.UserTimestampsKey(userID))
}

// CategoryQuestionCount is the category index cardinality.
func (e *Engine) CategoryQuestionCount(ctx context.Context, category string) int64 {
	return e.zset.Cardinality(ctx, backend.CategoryIndexKey(category))
}

// GlobalQuestionCount is the global index cardinality.
func (e *Engine) GlobalQuestionCount(ctx context.Context) int64 {
	return e.zset.Cardinality(ctx, backend.GlobalIndexKey())
}

// ImportLegacyStream drains a user's deprecated append-log of events,
// materializes canonical records plus all derived indices, and deletes the
// stream. Idempotent: a second call finds no stream and migrates nothing.
// Returns the number of migrated events.
func (e *Engine) ImportLegacyStream(ctx context.Context, userID string) int {
	key := backend.LegacyStreamKey(userID)
	entries := e.stream.RangeForward(ctx, key, "-", "+", 0)
	if len(entries) == 0 {
		return 0
	}
	migrated := 0
	for _, entry := range entries {
		createdAt := parseInt(entry.Fields["timestamp"])
		if createdAt == 0 {
			// Fall back to the entry ID's millisecond part.
			msPart, _, _ := strings.Cut(entry.ID, "-")
			createdAt = parseInt(msPart) / 1000
		}
		category := entry.Fields["category"]
		if category == "" {
			category = e.defaults.Category
		}
		difficulty := entry.Fields["difficulty"]
		if difficulty == "" {
			difficulty = e.defaults.Difficulty
		}
		record := map[string]string{
			"event_id":   entry.ID,
			"user_id":    userID,
			"question":   entry.Fields["question"],
			"response":   entry.Fields["response"],
			"category":   category,
			"difficulty": difficulty,
			"created_at": strconv.FormatInt(createdAt, 10),
		}
		if !e.hash.SetFields(ctx, backend.EventKey(userID, entry.ID), record, 0) {
			continue
		}
		e.indexEvent(ctx, userID, entry.ID, category, difficulty, createdAt)
		migrated++
	}
	e.stream.Delete(ctx, key)
	return migrated
}

// indexRange reads an index, bounded when both window edges are given. The
// second return is false for an inverted window (fails closed).
func (e *Engine) indexRange(ctx context.Context, key string, startTime, endTime *int64) ([]string, bool) {
	if startTime != nil && endTime != nil {
		if *startTime > *endTime {
			return nil, false
		}
		return e.zset.RangeByScore(ctx, key, float64(*startTime), float64(*endTime)), true
	}
	return e.zset.RangeByRank(ctx, key, 0, -1), true
}

// reverseJoin recovers a full event record from only its ID by scanning the
// user namespaces for a matching record key.
func (e *Engine) reverseJoin(ctx context.Context, eventID string) (schema.Event, bool) {
	for _, key := range e.hash.KeysMatching(ctx, backend.EventReversePattern(eventID)) {
		fields := e.hash.GetAll(ctx, key)
		if len(fields) > 0 {
			return parseEvent(eventID, fields), true
		}
	}
	return schema.Event{}, false
}

// scanUserEvents reads every canonical event record of one user.
func (e *Engine) scanUserEvents(ctx context.Context, userID string) []schema.Event {
	events := []schema.Event{}
	for _, key := range e.hash.KeysMatching(ctx, backend.EventPattern(userID)) {
		fields := e.hash.GetAll(ctx, key)
		if len(fields) == 0 {
			continue
		}
		events = append(events, parseEvent(fields["event_id"], fields))
	}
	return events
}

func sortNewestFirst(events []schema.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].EventID > events[j].EventID
	})
}

func parseEvent(eventID string, fields map[string]string) schema.Event {
	if id := fields["event_id"]; id != "" {
		eventID = id
	}
	return schema.Event{
		EventID:    eventID,
		UserID:     fields["user_id"],
		Question:   fields["question"],
		Response:   fields["response"],
		Category:   fields["category"],
		Difficulty: fields["difficulty"],
		CreatedAt:  parseInt(fields["created_at"]),
	}
}

// difficultyFromSiblingKey extracts the difficulty segment from a
// difficulty-by-category index key.
func difficultyFromSiblingKey(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) != 6 {
		return ""
	}
	return parts[3]
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func parseInt(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
