// Package session persists the latest ResultSet per conversation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/model"
)

const keyPrefix = cache.KeyPrefix + "session:"

// Store maps session id to its most recent ResultSet. A new search
// replaces the previous set; follow-ups only read.
type Store struct {
	kv  cache.Store
	ttl time.Duration
}

// NewStore creates a session store over kv
func NewStore(kv cache.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{kv: kv, ttl: ttl}
}

// Key returns the store key for a session
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// Save persists rs, superseding any earlier set for the session
func (s *Store) Save(ctx context.Context, rs *model.ResultSet) error {
	if rs.SessionID == "" {
		return fmt.Errorf("save session: empty session id")
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal result set: %w", err)
	}
	if err := s.kv.Set(ctx, Key(rs.SessionID), data, s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", rs.SessionID, err)
	}
	return nil
}

// Load returns the latest ResultSet for the session, or model.ErrNoResultSet
func (s *Store) Load(ctx context.Context, sessionID string) (*model.ResultSet, error) {
	data, err := s.kv.Get(ctx, Key(sessionID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, model.ErrNoResultSet
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var rs model.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("unmarshal result set: %w", err)
	}
	return &rs, nil
}

// Delete forgets a session
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Delete(ctx, Key(sessionID))
}
