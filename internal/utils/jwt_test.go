package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminToken_RoundTrip(t *testing.T) {
	tok, err := NewAdminToken("jwt-secret", "alice", 30, time.Now())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), tok.Exp, 5*time.Second)

	name, err := ParseAdminToken("jwt-secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestAdminToken_Rejects(t *testing.T) {
	tok, err := NewAdminToken("jwt-secret", "alice", 30, time.Now())
	require.NoError(t, err)

	_, err = ParseAdminToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAdminToken("jwt-secret", "alice", 1, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseAdminToken("jwt-secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAdminToken("jwt-secret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
