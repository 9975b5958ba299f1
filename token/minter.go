package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// MintRequest describes a token to issue.
type MintRequest struct {
	Kind      Kind
	Subject   string
	Tenant    string
	StationID int64
	TTL       time.Duration // zero uses the minter default
}

// Minter issues and verifies signed bearer tokens. It backs the fake
// backend; a device never holds the signing secret.
type Minter struct {
	signer      Signer
	issuer      string
	revocations Revocations
	defaultTTL  time.Duration
	nowFunc     func() time.Time
}

type MinterOption func(*Minter)

func WithIssuer(issuer string) MinterOption {
	return func(m *Minter) {
		m.issuer = issuer
	}
}

func WithDefaultTTL(ttl time.Duration) MinterOption {
	return func(m *Minter) {
		m.defaultTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) MinterOption {
	return func(m *Minter) {
		m.nowFunc = now
	}
}

func WithRevocations(r Revocations) MinterOption {
	return func(m *Minter) {
		m.revocations = r
	}
}

func NewMinter(signer Signer, options ...MinterOption) *Minter {
	m := &Minter{
		signer:      signer,
		revocations: NewRevocationList(),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.defaultTTL == 0 {
		m.defaultTTL = 8 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Mint signs a new token for req.
func (m *Minter) Mint(req MintRequest) (string, *Claims, error) {
	ttl := req.TTL
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	now := m.nowFunc()
	wc := &wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   req.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Tenant:    req.Tenant,
		StationID: req.StationID,
		Kind:      req.Kind,
	}

	signed, err := m.signer.Sign(wc)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Minter.Mint]")
	}
	return signed, wc.claims(), nil
}

// Verify checks signature, expiry and revocation and returns the claims.
func (m *Minter) Verify(rawToken string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithValidMethods([]string{m.signer.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	var wc wireClaims
	parsed, err := jwt.ParseWithClaims(rawToken, &wc, m.signer.Keyfunc, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims := wc.claims()
	if claims.ID != "" && m.revocations.Revoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke marks a verified token as no longer usable. Expired entries are
// pruned on the way.
func (m *Minter) Revoke(rawToken string) error {
	claims, err := m.Verify(rawToken)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return errors.New("[Minter.Revoke] token has no jti")
	}
	m.revocations.Prune(m.nowFunc())
	m.revocations.Revoke(claims.ID, claims.ExpiresAt)
	return nil
}
