package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expiringProvider hands out numbered tokens with a fixed stated lifetime.
type expiringProvider struct {
	lifetime time.Duration
	calls    int
}

func (p *expiringProvider) Acquire(_ context.Context) (Token, error) {
	p.calls++

	return Token{Value: "tok-" + string(rune('0'+p.calls)), ExpiresIn: p.lifetime}, nil
}

func TestSession_TokenCachedUntilRefreshPoint(t *testing.T) {
	provider := &expiringProvider{lifetime: 60 * time.Minute}
	s := NewSession(provider, true)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return now }

	tok, err := s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// 49 minutes is under 5/6 of 60 minutes: cached.
	now = now.Add(49 * time.Minute)
	tok, err = s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, provider.calls)

	// 51 minutes is past the 50 minute refresh point: reacquired.
	now = now.Add(2 * time.Minute)
	tok, err = s.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, provider.calls)
}

func TestSession_TokenFailureWrapsSentinel(t *testing.T) {
	s := NewSession(failingProvider{}, true)

	_, err := s.AccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenAcquisition)
	assert.Contains(t, err.Error(), "token error")
}

func TestSession_BatchFlagIsOneWay(t *testing.T) {
	s := NewSession(failingProvider{}, true)
	assert.True(t, s.BatchSupported())

	assert.True(t, s.DisableBatch(), "first disable flips the flag")
	assert.False(t, s.DisableBatch(), "second disable is a no-op")
	assert.False(t, s.BatchSupported())

	disabled := NewSession(failingProvider{}, false)
	assert.False(t, disabled.BatchSupported())
	assert.False(t, disabled.DisableBatch())
}

func TestSession_ThrottledFlag(t *testing.T) {
	s := NewSession(failingProvider{}, true)
	assert.False(t, s.Throttled())

	s.MarkThrottled()
	assert.True(t, s.Throttled())

	assert.True(t, s.ResetThrottled())
	assert.False(t, s.Throttled())
	assert.False(t, s.ResetThrottled())
}
