// Package service holds the client-side session: who is signed in and which organization is active.
package service

import (
	"context"
	"errors"
	"sync"

	"pulsedeck/internal/security"
	"pulsedeck/internal/session/domain"
)

// ErrInvalidToken is returned by SignIn when the access token does not validate.
var ErrInvalidToken = errors.New("session: invalid access token")

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccess(token string) (*security.AccessClaims, error)
}

// Listener is notified of identity changes. A nil identity means signed out.
type Listener func(ctx context.Context, id *domain.Identity)

// Store holds the current identity and notifies listeners synchronously, in registration order.
type Store struct {
	tokens TokenValidator

	mu        sync.Mutex
	current   *domain.Identity
	listeners []Listener
}

// NewStore returns an empty (signed-out) Store.
func NewStore(tokens TokenValidator) *Store {
	return &Store{tokens: tokens}
}

// Current returns the signed-in identity or nil.
func (s *Store) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// Subscribe registers fn. It is not called for the current identity.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignIn validates token, replaces the current identity and notifies listeners.
// An invalid token leaves the store unchanged.
func (s *Store) SignIn(ctx context.Context, token string) (*domain.Identity, error) {
	claims, err := s.tokens.ValidateAccess(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	id := &domain.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		SessionID:   claims.SessionID,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	s.set(ctx, id)
	return id, nil
}

// SignOut clears the identity and notifies listeners. Signing out while signed out is a no-op.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	had := s.current != nil
	s.mu.Unlock()
	if had {
		s.set(ctx, nil)
	}
}

func (s *Store) set(ctx context.Context, id *domain.Identity) {
	s.mu.Lock()
	s.current = id
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, id)
	}
}
