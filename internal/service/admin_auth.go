package service

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/iliyamo/dorm-seat-reservation/internal/utils"
)

// AdminCredential is what a caller presents to act as an admin: either a
// name and the shared secret, or a session token from Login.
type AdminCredential struct {
	Name   string
	Secret string
	Token  string
}

// Present reports whether the caller attempted admin authentication at all.
func (c AdminCredential) Present() bool {
	return c.Secret != "" || c.Token != "" || strings.TrimSpace(c.Name) != ""
}

// AdminVerifier checks admin credentials against the configured secret and
// name allow-list.  An empty secret makes every check fail with
// ServerMisconfigured instead of granting access.
type AdminVerifier struct {
	secret    string
	names     map[string]struct{}
	jwtSecret string
	ttlMin    int
	now       func() time.Time
}

// NewAdminVerifier builds a verifier.  An empty names list disables the name
// check; an empty jwtSecret disables session tokens.
func NewAdminVerifier(secret string, names []string, jwtSecret string, ttlMin int) *AdminVerifier {
	v := &AdminVerifier{
		secret:    secret,
		names:     make(map[string]struct{}, len(names)),
		jwtSecret: jwtSecret,
		ttlMin:    ttlMin,
		now:       time.Now,
	}
	for _, n := range names {
		v.names[n] = struct{}{}
	}
	if v.ttlMin <= 0 {
		v.ttlMin = 60
	}
	return v
}

func (v *AdminVerifier) allowed(name string) bool {
	if len(v.names) == 0 {
		return true
	}
	_, ok := v.names[name]
	return ok
}

// Verify authenticates c and returns the admin name.
func (v *AdminVerifier) Verify(c AdminCredential) (string, error) {
	if v.secret == "" {
		return "", errMisconfigured
	}
	if c.Token != "" {
		if v.jwtSecret == "" {
			return "", errAdminRejected
		}
		name, err := utils.ParseAdminToken(v.jwtSecret, c.Token)
		if err != nil {
			return "", errAdminRejected
		}
		if !v.allowed(name) {
			return "", errAdminForbidden
		}
		return name, nil
	}
	if c.Secret == "" {
		return "", errAdminRequired
	}
	name := strings.TrimSpace(c.Name)
	secretOK := subtle.ConstantTimeCompare([]byte(c.Secret), []byte(v.secret)) == 1
	if !secretOK || !v.allowed(name) {
		return "", errAdminRejected
	}
	return name, nil
}

// IssueToken signs a session token for name.  It returns a zero token when
// session tokens are disabled.
func (v *AdminVerifier) IssueToken(name string) (utils.AccessToken, error) {
	if v.jwtSecret == "" {
		return utils.AccessToken{}, nil
	}
	return utils.NewAdminToken(v.jwtSecret, name, v.ttlMin, v.now())
}
