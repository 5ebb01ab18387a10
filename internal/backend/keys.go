package backend

import (
	"path"
	"strings"
)

// Namespace is the root segment of every askdeck key.
const Namespace = "askdeck"

// Key joins path segments with ":" under the application namespace.
func Key(segments ...string) string {
	return Namespace + ":" + strings.Join(segments, ":")
}

// ProfileKey is the canonical per-user profile hash.
func ProfileKey(userID string) string {
	return Key("user", userID, "profile")
}

// LegacyProfileKey is the deprecated profile hash shape, compacted into the
// canonical shape on read.
func LegacyProfileKey(userID string) string {
	return Key("user", userID, "profile", "data")
}

// ProfilePattern enumerates canonical profile keys.
func ProfilePattern() string {
	return Key("user", "*", "profile")
}

// LegacyProfilePattern enumerates leftover deprecated profile keys.
func LegacyProfilePattern() string {
	return Key("user", "*", "profile", "data")
}

// EventKey is the canonical event record hash.
func EventKey(userID, eventID string) string {
	return Key("user", userID, "questions", eventID, "hash")
}

// EventPattern enumerates one user's event records.
func EventPattern(userID string) string {
	return Key("user", userID, "questions", "*", "hash")
}

// EventReversePattern locates an event record across all users given only
// its ID. This is the reverse-join scan: O(total keys) at the backend.
func EventReversePattern(eventID string) string {
	return Key("user", "*", "questions", eventID, "hash")
}

// LegacyStreamKey is the deprecated per-user append-log of events.
func LegacyStreamKey(userID string) string {
	return Key("user", userID, "questions", "stream")
}

// UserTimestampsKey is the per-user eventID -> created_at index.
func UserTimestampsKey(userID string) string {
	return Key("user", userID, "question_timestamps", "zset")
}

// UserAggregateKey holds the per-user aggregate counters maintained by the
// event write path.
func UserAggregateKey(userID string) string {
	return Key("user", userID, "aggregate", "hash")
}

// GlobalIndexKey is the system-wide eventID -> created_at index.
func GlobalIndexKey() string {
	return Key("analytics", "global_analytics", "questions")
}

// CategoryIndexKey indexes events of one category.
func CategoryIndexKey(category string) string {
	return Key("analytics", "category_analytics", category)
}

// DifficultyCategoryKey indexes events of one (difficulty, category) pair.
// Sibling namespace beside the category index, not nested under it.
func DifficultyCategoryKey(difficulty, category string) string {
	return Key("analytics", "difficulty_analytics", difficulty, "category", category)
}

// DifficultyCategoryPattern enumerates the difficulty siblings of a category.
func DifficultyCategoryPattern(category string) string {
	return Key("analytics", "difficulty_analytics", "*", "category", category)
}

// SessionKey maps an opaque token to its session record.
func SessionKey(token string) string {
	return Key("session", token)
}

// SessionPattern enumerates live sessions.
func SessionPattern() string {
	return Key("session", "*")
}

// TokenFromSessionKey recovers the token from a session key.
func TokenFromSessionKey(key string) string {
	return strings.TrimPrefix(key, Key("session")+":")
}

// matchPattern reports whether key matches a glob pattern. Like the Redis
// KEYS glob, "*" crosses segment separators.
func matchPattern(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
