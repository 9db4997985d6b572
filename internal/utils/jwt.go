package utils // package utils provides helper functions for token creation and hashing

import (
    "errors"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// adminRole is the role claim carried by every admin session token.
const adminRole = "ADMIN"

// ErrInvalidToken is returned by ParseAdminToken for any token that is not
// a valid, unexpired admin token signed with the expected secret.
var ErrInvalidToken = errors.New("invalid admin token")

// AccessToken represents a signed JWT access token along with its expiry.
// Admin tokens are short-lived and are sent in the Authorization header
// (or the ?token= query of the realtime endpoint) instead of the shared
// admin secret.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAdminToken builds and signs an HS256 JWT for an admin.  The subject is
// the admin name, which may be empty when no name allow-list is configured.
func NewAdminToken(secret, name string, ttlMin int, now time.Time) (AccessToken, error) {
    exp := now.UTC().Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  name,
        "role": adminRole,
        "exp":  exp.Unix(),
        "iat":  now.UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAdminToken validates raw and returns the admin name it was issued to.
func ParseAdminToken(secret, raw string) (string, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    if err != nil || !tok.Valid {
        return "", ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", ErrInvalidToken
    }
    if role, _ := claims["role"].(string); role != adminRole {
        return "", ErrInvalidToken
    }
    name, _ := claims["sub"].(string)
    return name, nil
}
