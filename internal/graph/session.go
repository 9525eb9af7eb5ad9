package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Token is a bearer token together with the lifetime the issuer stated
// for it at acquisition time.
type Token struct {
	Value     string
	ExpiresIn time.Duration
}

// TokenProvider acquires fresh tokens from the identity provider. Defined at
// the consumer (graph package); ClientCredentials is the real implementation.
type TokenProvider interface {
	Acquire(ctx context.Context) (Token, error)
}

// Token refresh happens once a token has lived refreshNumerator/refreshDenominator
// of its stated lifetime, well before the issuer would reject it.
const (
	refreshNumerator     = 5
	refreshDenominator   = 6
	defaultTokenLifetime = time.Hour
)

// Session holds the mutable state of a single run: the cached token, the
// batch-supported flag, and the throttled flag. Every run builds its own
// Session, so tests and concurrent runs never share state.
type Session struct {
	provider TokenProvider
	nowFunc  func() time.Time

	mu         sync.Mutex
	token      Token
	acquiredAt time.Time

	batchSupported atomic.Bool
	throttled      atomic.Bool
}

// NewSession creates run state. batchEnabled seeds the batch-supported flag
// from configuration; it can only ever be cleared afterwards.
func NewSession(provider TokenProvider, batchEnabled bool) *Session {
	s := &Session{
		provider: provider,
		nowFunc:  time.Now,
	}
	s.batchSupported.Store(batchEnabled)

	return s
}

// AccessToken returns the cached token, acquiring a new one when none is
// held or the held token is past its refresh point.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Value != "" && !s.stale() {
		return s.token.Value, nil
	}

	tok, err := s.provider.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenAcquisition, err)
	}

	if tok.Value == "" {
		return "", fmt.Errorf("%w: provider returned an empty token", ErrTokenAcquisition)
	}

	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = defaultTokenLifetime
	}

	s.token = tok
	s.acquiredAt = s.nowFunc()

	return tok.Value, nil
}

// stale reports whether the held token has passed its refresh point.
// Caller must hold s.mu.
func (s *Session) stale() bool {
	age := s.nowFunc().Sub(s.acquiredAt)
	limit := s.token.ExpiresIn * refreshNumerator / refreshDenominator

	return age > limit
}

// BatchSupported reports whether $batch submissions should still be tried.
func (s *Session) BatchSupported() bool {
	return s.batchSupported.Load()
}

// DisableBatch clears the batch-supported flag for the rest of the run.
// Returns true only for the call that actually flipped it.
func (s *Session) DisableBatch() bool {
	return s.batchSupported.CompareAndSwap(true, false)
}

// MarkThrottled records that a throttling or transient status was seen.
func (s *Session) MarkThrottled() {
	s.throttled.Store(true)
}

// Throttled reports whether a throttling status was seen since the last reset.
func (s *Session) Throttled() bool {
	return s.throttled.Load()
}

// ResetThrottled clears the throttled flag and returns its previous value.
func (s *Session) ResetThrottled() bool {
	return s.throttled.Swap(false)
}
