package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIsWeakPassword(t *testing.T) {
	weak := []string{
		"",
		"aaaa",
		"x1111y",
		"abc",
		"ABCDEF",
		"qwer",
		"QwErTy",
		"asdfgh",
		"zxcv",
		"1234",
		"my9876pw",
		"pw-lmno!",
		"zyxw",
		"xxWXYZ",
		"ㅋㅋㅋㅋ",
		"éééé!x",
		"pw-ÉÉÉé",
	}
	for _, pw := range weak {
		assert.True(t, IsWeakPassword(pw), "%q should be weak", pw)
	}

	strong := []string{
		"p@ssW0rd!",
		"s3at-42#",
		"aab1z9q",
		"135790",
		"qwa7",
		"dorm-D1!x",
		"ㅋㅋㅋ7x",
		"기숙사-3층",
	}
	for _, pw := range strong {
		assert.False(t, IsWeakPassword(pw), "%q should be accepted", pw)
	}
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("p@ssW0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "p@ssW0rd!", hash)
	assert.True(t, h.Verify(hash, "p@ssW0rd!"))
	assert.False(t, h.Verify(hash, "p@ssW0rd"))
	assert.False(t, h.Verify("not-a-hash", "p@ssW0rd!"))
}
