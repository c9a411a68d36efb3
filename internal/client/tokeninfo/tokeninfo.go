// Package tokeninfo reads display details out of a bearer token without
// verifying it. The result is informational only and must never be used to
// decide whether a session is valid.
package tokeninfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("token is not a JWT")

// Info holds the claims worth showing to a user.
type Info struct {
	Subject   string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that lies before now.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Inspect decodes token's claims. Opaque tokens yield ErrNotJWT.
func Inspect(token string) (Info, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := Info{Subject: c.Subject, Username: c.Username}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info, nil
}
