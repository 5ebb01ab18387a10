// Package profile owns the per-user profile record: idempotent creation,
// field updates, counters, and the username reverse lookup.
package profile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
	"github.com/askdeck-dev/askdeck/pkg/schema"
)

// Store manages profile records. All failures degrade to "not found" or
// false; no errors cross this boundary.
type Store struct {
	hash     *backend.HashClient
	ttl      time.Duration
	defaults config.DefaultsConfig
	now      func() time.Time
}

// New creates a profile store over the given backend.
func New(store backend.Store, cfg *config.Config) *Store {
	return &Store{
		hash:     backend.NewHashClient(store),
		ttl:      cfg.Profile.TTL(),
		defaults: cfg.Defaults,
		now:      time.Now,
	}
}

// CreateProfile writes a fresh record with zeroed counters and current
// timestamps. It does not check username uniqueness; that advisory check is
// the caller's responsibility and the check-then-create race stays open.
func (s *Store) CreateProfile(ctx context.Context, employeeID, username, password, department, role string) bool {
	if department == "" {
		department = s.defaults.Department
	}
	if role == "" {
		role = s.defaults.Role
	}
	nowSec := strconv.FormatInt(s.now().Unix(), 10)
	fields := map[string]string{
		"employee_id":     employeeID,
		"username":        username,
		"password":        password,
		"department":      department,
		"role":            role,
		"questions_asked": "0",
		"login_count":     "0",
		"last_login":      nowSec,
		"created_at":      nowSec,
		"status":          s.defaults.Status,
	}
	if !s.hash.SetFields(ctx, backend.ProfileKey(employeeID), fields, s.ttl) {
		return false
	}
	// Clean up any leftover deprecated key so the record is not duplicated.
	s.hash.Delete(ctx, backend.LegacyProfileKey(employeeID))
	return true
}

// GetProfile returns the complete profile. Legacy-shaped keys are compacted
// to the canonical shape on the way.
func (s *Store) GetProfile(ctx context.Context, employeeID string) (schema.Profile, bool) {
	s.CompactLegacyKey(ctx, employeeID)
	fields := s.hash.GetAll(ctx, backend.ProfileKey(employeeID))
	if len(fields) == 0 {
		return schema.Profile{}, false
	}
	return parseProfile(fields), true
}

// FindByUsername scans every profile key and returns the first record whose
// username matches. O(n) in total profile count; this is the accepted cost of
// not keeping a secondary index.
func (s *Store) FindByUsername(ctx context.Context, username string) (schema.Profile, bool) {
	// Fold any leftover legacy keys in first so their owners are findable.
	for _, key := range s.hash.KeysMatching(ctx, backend.LegacyProfilePattern()) {
		if userID := legacyKeyUserID(key); userID != "" {
			s.CompactLegacyKey(ctx, userID)
		}
	}
	for _, key := range s.hash.KeysMatching(ctx, backend.ProfilePattern()) {
		fields := s.hash.GetAll(ctx, key)
		if fields["username"] == username {
			return parseProfile(fields), true
		}
	}
	return schema.Profile{}, false
}

// UsernameExists reports whether any profile carries the username.
func (s *Store) UsernameExists(ctx context.Context, username string) bool {
	_, ok := s.FindByUsername(ctx, username)
	return ok
}

// RecordLogin increments login_count and stamps last_login. The two writes
// are best-effort and not atomic with each other.
func (s *Store) RecordLogin(ctx context.Context, employeeID string) bool {
	key := backend.ProfileKey(employeeID)
	_, ok := s.hash.Increment(ctx, key, "login_count", 1)
	if !ok {
		return false
	}
	return s.hash.SetField(ctx, key, "last_login", strconv.FormatInt(s.now().Unix(), 10))
}

// IncrementQuestionsAsked bumps the questions_asked counter.
func (s *Store) IncrementQuestionsAsked(ctx context.Context, employeeID string) bool {
	_, ok := s.hash.Increment(ctx, backend.ProfileKey(employeeID), "questions_asked", 1)
	return ok
}

// UpdateField overwrites one profile field. Used for department/role updates;
// not restricted at this layer.
func (s *Store) UpdateField(ctx context.Context, employeeID, field, value string) bool {
	return s.hash.SetField(ctx, backend.ProfileKey(employeeID), field, value)
}

// GetStats returns the counter subset. Absent is signaled by a missing
// questions_asked field.
func (s *Store) GetStats(ctx context.Context, employeeID string) (schema.Stats, bool) {
	values := s.hash.GetFields(ctx, backend.ProfileKey(employeeID),
		[]string{"questions_asked", "login_count", "last_login", "created_at"})
	if len(values) < 4 || values[0] == "" {
		return schema.Stats{}, false
	}
	return schema.Stats{
		QuestionsAsked: parseInt(values[0]),
		LoginCount:     parseInt(values[1]),
		LastLogin:      parseInt(values[2]),
		CreatedAt:      parseInt(values[3]),
	}, true
}

// ListProfiles returns every profile. Admin use only.
func (s *Store) ListProfiles(ctx context.Context) []schema.Profile {
	profiles := []schema.Profile{}
	for _, key := range s.hash.KeysMatching(ctx, backend.ProfilePattern()) {
		fields := s.hash.GetAll(ctx, key)
		if len(fields) > 0 {
			profiles = append(profiles, parseProfile(fields))
		}
	}
	return profiles
}

// DeleteProfile removes the record. Not exposed through the API.
func (s *Store) DeleteProfile(ctx context.Context, employeeID string) bool {
	return s.hash.Delete(ctx, backend.ProfileKey(employeeID))
}

// CompactLegacyKey migrates a deprecated flat profile key to the canonical
// shape and removes the old key. Idempotent and safe to call on every read:
// once the legacy key is gone the call is a no-op. Returns true when a
// migration happened.
func (s *Store) CompactLegacyKey(ctx context.Context, employeeID string) bool {
	legacyKey := backend.LegacyProfileKey(employeeID)
	if s.hash.KeyType(ctx, legacyKey) != "hash" {
		return false
	}
	fields := s.hash.GetAll(ctx, legacyKey)
	if len(fields) == 0 {
		return false
	}
	canonical := backend.ProfileKey(employeeID)
	if !s.hash.Exists(ctx, canonical) {
		if !s.hash.SetFields(ctx, canonical, fields, s.ttl) {
			return false
		}
	}
	s.hash.Delete(ctx, legacyKey)
	return true
}

// legacyKeyUserID extracts the user ID from a deprecated profile key of the
// form askdeck:user:{id}:profile:data.
func legacyKeyUserID(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) != 5 {
		return ""
	}
	return parts[2]
}

func parseProfile(fields map[string]string) schema.Profile {
	return schema.Profile{
		EmployeeID:     fields["employee_id"],
		Username:       fields["username"],
		Password:       fields["password"],
		Department:     fields["department"],
		Role:           fields["role"],
		QuestionsAsked: parseInt(fields["questions_asked"]),
		LoginCount:     parseInt(fields["login_count"]),
		LastLogin:      parseInt(fields["last_login"]),
		CreatedAt:      parseInt(fields["created_at"]),
		Status:         fields["status"],
	}
}

// parseInt converts a numeric hash field, zero on anything unparseable.
func parseInt(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
