package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims are the unverified claims of an access token. The frontend does not
// hold the signing key; these values are hints for cookie expiry and log
// attribution only, never an authorization decision.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseClaims reads the claims of token without verifying its signature.
func ParseClaims(token string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return Claims{}, errors.Join(ErrMalformedToken, err)
	}

	c := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// Subject returns the token subject (the username) or "" when unreadable.
func Subject(token string) string {
	c, err := ParseClaims(token)
	if err != nil {
		return ""
	}
	return c.Subject
}
