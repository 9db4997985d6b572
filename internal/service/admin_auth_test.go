package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-seat-reservation/internal/utils"
)

func TestAdminVerifier(t *testing.T) {
	v := NewAdminVerifier("top", []string{"warden", "dean"}, "jwt", 10)

	tests := []struct {
		name string
		cred AdminCredential
		kind Kind
		code string
	}{
		{"missing secret", AdminCredential{Name: "warden"}, KindAuthentication, CodeAdminRequired},
		{"wrong secret", AdminCredential{Name: "warden", Secret: "nope"}, KindAuthentication, CodeAdminRejected},
		{"unknown name", AdminCredential{Name: "kim", Secret: "top"}, KindAuthentication, CodeAdminRejected},
		{"garbage token", AdminCredential{Token: "not-a-jwt"}, KindAuthentication, CodeAdminRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.cred)
			assertCode(t, err, tt.kind, tt.code)
		})
	}

	name, err := v.Verify(AdminCredential{Name: " dean ", Secret: "top"})
	require.NoError(t, err)
	assert.Equal(t, "dean", name)
}

func TestAdminVerifier_EmptySecretFailsClosed(t *testing.T) {
	v := NewAdminVerifier("", nil, "jwt", 10)
	for _, cred := range []AdminCredential{{}, {Secret: ""}, {Name: "x", Secret: "anything"}} {
		_, err := v.Verify(cred)
		assertCode(t, err, KindMisconfigured, CodeMisconfigured)
	}
}

func TestAdminVerifier_EmptyAllowListChecksSecretOnly(t *testing.T) {
	v := NewAdminVerifier("top", nil, "", 0)
	name, err := v.Verify(AdminCredential{Name: "anyone", Secret: "top"})
	require.NoError(t, err)
	assert.Equal(t, "anyone", name)

	tok, err := v.IssueToken("anyone")
	require.NoError(t, err)
	assert.Empty(t, tok.Token)
}

func TestAdminVerifier_TokenForRemovedAdmin(t *testing.T) {
	tok, err := utils.NewAdminToken("jwt", "former", 5, time.Now())
	require.NoError(t, err)

	v := NewAdminVerifier("top", []string{"warden"}, "jwt", 10)
	_, err = v.Verify(AdminCredential{Token: tok.Token})
	assertCode(t, err, KindAuthorization, CodeAdminForbidden)
}

func TestCredentialPresent(t *testing.T) {
	assert.False(t, AdminCredential{}.Present())
	assert.False(t, AdminCredential{Name: "  "}.Present())
	assert.True(t, AdminCredential{Token: "t"}.Present())
	assert.True(t, AdminCredential{Secret: "s"}.Present())
}
