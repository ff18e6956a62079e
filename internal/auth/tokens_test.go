package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuePairAndParse(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)

	access, refresh, err := m.IssuePair(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := m.Parse(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "alice", claims.Username)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	refreshClaims, err := m.Parse(refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refreshClaims.Type)
}

func TestParseRejectsWrongType(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)

	access, refresh, err := m.IssuePair(1, "bob")
	require.NoError(t, err)

	_, err = m.Parse(access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Parse(refresh, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	access, _, err := m.IssuePair(1, "bob")
	require.NoError(t, err)

	_, err = m.Parse(access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	other := NewTokenManager("other-secret", 15*time.Minute, 24*time.Hour)

	access, _, err := other.IssuePair(1, "bob")
	require.NoError(t, err)

	_, err = m.Parse(access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshIssuesNewAccess(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)

	access, refresh, err := m.IssuePair(7, "carol")
	require.NoError(t, err)

	newAccess, err := m.Refresh(refresh)
	require.NoError(t, err)

	claims, err := m.Parse(newAccess, TokenTypeAccess)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// an access token must not be exchangeable
	_, err = m.Refresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
