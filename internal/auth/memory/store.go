// Package memory keeps sessions and reset tokens in process for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/identity-access/internal/auth"
)

// Store implements auth.SessionStore and auth.ResetTokenStore.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]auth.Session
	resets   map[string]auth.ResetToken
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]auth.Session),
		resets:   make(map[string]auth.ResetToken),
	}
}

func (s *Store) CreateSession(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) FindSession(_ context.Context, id uuid.UUID) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *Store) RotateRefreshToken(_ context.Context, sessionID uuid.UUID, expectedTokenID, newTokenID string, expiresAt, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.RevokedAt != nil || session.RefreshTokenID != expectedTokenID {
		return false, nil
	}
	session.RefreshTokenID = newTokenID
	session.ExpiresAt = expiresAt
	session.UpdatedAt = now
	s.sessions[sessionID] = session
	return true, nil
}

func (s *Store) RevokeSession(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.RevokedAt != nil {
		return nil
	}
	session.RevokedAt = &at
	session.UpdatedAt = at
	s.sessions[id] = session
	return nil
}

func (s *Store) RevokeUserSessions(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.UserID != userID || session.RevokedAt != nil {
			continue
		}
		revokedAt := at
		session.RevokedAt = &revokedAt
		session.UpdatedAt = at
		s.sessions[id] = session
		n++
	}
	return n, nil
}

func (s *Store) SaveResetToken(_ context.Context, t *auth.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[t.TokenHash] = *t
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[tokenHash]
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return nil, nil
	}
	usedAt := now
	t.UsedAt = &usedAt
	s.resets[tokenHash] = t
	return &t, nil
}
