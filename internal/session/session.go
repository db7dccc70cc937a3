// Package session holds the bearer token shared by every outgoing request.
//
// The token is opaque: any non-empty string counts as authenticated until the
// remote service rejects it. At most one token is held at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	storepkg "calcweb/internal/store"
)

// TokenKey is the durable key the token is stored under.
const TokenKey = "token"

var ErrEmptyToken = errors.New("session token is empty")

// Sealer encrypts the token at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

type Option func(*Store)

func WithSealer(s Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

type Store struct {
	mu      sync.RWMutex
	token   string
	backend storepkg.Store
	sealer  Sealer
}

// Open restores a previously persisted token from backend. A value that
// cannot be unsealed is discarded so the user is sent back to login.
func Open(ctx context.Context, backend storepkg.Store, opts ...Option) (*Store, error) {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	raw, err := backend.Get(ctx, TokenKey)
	switch {
	case errors.Is(err, storepkg.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}
	token, err := s.unseal(raw)
	if err != nil {
		if delErr := backend.Delete(ctx, TokenKey); delErr != nil {
			return nil, fmt.Errorf("discard unreadable session: %w", delErr)
		}
		return s, nil
	}
	s.token = token
	return s, nil
}

func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Set persists token and then publishes it. Readers see either the old or the
// new token, never a value that failed to persist.
func (s *Store) Set(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	raw, err := s.seal(token)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(ctx, TokenKey, raw); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.token = token
	return nil
}

// Clear forgets the token in memory even when the durable delete fails, so a
// sign-out always takes effect for this process.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if err := s.backend.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *Store) seal(token string) (string, error) {
	if s.sealer == nil {
		return token, nil
	}
	return s.sealer.Seal(token)
}

func (s *Store) unseal(raw string) (string, error) {
	if s.sealer == nil {
		return raw, nil
	}
	return s.sealer.Open(raw)
}
