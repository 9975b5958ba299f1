package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs the tokens a Minter issues and supplies the key to check
// them.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	Keyfunc(token *jwt.Token) (any, error)
	Alg() string
}

// HMACSigner signs with HS256 and a shared secret.
type HMACSigner struct {
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{secret: []byte(secret)}
}

func (h *HMACSigner) Alg() string {
	return jwt.SigningMethodHS256.Alg()
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "[HMACSigner.Sign]")
	}
	return signed, nil
}

func (h *HMACSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
