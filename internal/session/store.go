// Package session issues and resolves opaque session tokens against the
// key-value store.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
	"github.com/askdeck-dev/askdeck/pkg/schema"
)

// Store manages session records. Sessions expire after the configured TTL
// and are recreated on the next login.
type Store struct {
	scalar *backend.ScalarClient
	ttl    time.Duration
}

// New creates a session store over the given backend.
func New(store backend.Store, cfg *config.Config) *Store {
	return &Store{
		scalar: backend.NewScalarClient(store),
		ttl:    cfg.Session.TTL(),
	}
}

// Create stores the session and returns its token. A second login for the
// same username reuses and overwrites the existing token instead of minting
// another one. The find-then-write sequence is not atomic, so concurrent
// logins can still race into duplicate sessions.
func (s *Store) Create(ctx context.Context, data schema.Session) string {
	if data.Username != "" {
		if token, _, ok := s.FindByUsername(ctx, data.Username); ok {
			if s.scalar.SetJSON(ctx, backend.SessionKey(token), data, s.ttl) {
				return token
			}
			return ""
		}
	}
	token := uuid.NewString()
	if !s.scalar.SetJSON(ctx, backend.SessionKey(token), data, s.ttl) {
		return ""
	}
	return token
}

// Get resolves a token to its session.
func (s *Store) Get(ctx context.Context, token string) (schema.Session, bool) {
	var data schema.Session
	if !s.scalar.GetJSON(ctx, backend.SessionKey(token), &data) {
		return schema.Session{}, false
	}
	return data, true
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, token string) bool {
	return s.scalar.Delete(ctx, backend.SessionKey(token))
}

// FindByUsername scans live sessions for the username. O(live sessions).
func (s *Store) FindByUsername(ctx context.Context, username string) (string, schema.Session, bool) {
	for _, key := range s.scalar.KeysMatching(ctx, backend.SessionPattern()) {
		var data schema.Session
		if s.scalar.GetJSON(ctx, key, &data) && data.Username == username {
			return backend.TokenFromSessionKey(key), data, true
		}
	}
	return "", schema.Session{}, false
}
