package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrOpaque is returned by Inspect for tokens that are not JWTs. Opaque
// tokens are valid bearer credentials, their lifetime is simply unknown.
var ErrOpaque = errors.New("token is opaque")

// Claims is the subset of bearer token claims the client cares about.
type Claims struct {
	ID        string    `json:"jti,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	Tenant    string    `json:"tenant,omitempty"`  // maKhachHang
	StationID int64     `json:"station,omitempty"` // selected tram can id, 0 for tenant-level tokens
	Kind      Kind      `json:"kind,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"` // zero when the token carries no exp
}

// Kind says which tier issued a token.
type Kind string

const (
	KindSession     Kind = "session"
	KindStationUser Kind = "station_user"
	KindGeneric     Kind = "generic"
)

// Expired reports whether the token is past its exp claim at now.
// Tokens without exp never expire locally.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// wireClaims is the JWT payload layout.
type wireClaims struct {
	jwt.RegisteredClaims
	Tenant    string `json:"tenant,omitempty"`
	StationID int64  `json:"station,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
}

func (w *wireClaims) claims() *Claims {
	c := &Claims{
		ID:        w.ID,
		Subject:   w.Subject,
		Tenant:    w.Tenant,
		StationID: w.StationID,
		Kind:      w.Kind,
	}
	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time
	}
	if w.IssuedAt != nil {
		c.IssuedAt = w.IssuedAt.Time
	}
	return c
}

// Inspect parses rawToken WITHOUT verifying its signature. The client has no
// key material; the result is only used for diagnostics and local expiry
// hints, the backend stays authoritative.
func Inspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}
	if strings.Count(rawToken, ".") != 2 {
		return nil, ErrOpaque
	}

	var wc wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, &wc); err != nil {
		return nil, errors.Wrap(ErrOpaque, err.Error())
	}
	return wc.claims(), nil
}
