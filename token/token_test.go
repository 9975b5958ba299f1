package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/tramcan-session/token"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
}

func TestMinter_MintAndInspect(t *testing.T) {
	m := token.NewMinter(token.NewHMACSigner("secret"),
		token.WithIssuer("tramcan-test"),
		token.WithNowFunc(fixedNow),
	)

	raw, minted, err := m.Mint(token.MintRequest{
		Kind:      token.KindSession,
		Subject:   "KH001",
		Tenant:    "KH001",
		StationID: 7,
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	require.NotEmpty(t, minted.ID)

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "KH001", claims.Subject)
	require.Equal(t, int64(7), claims.StationID)
	require.Equal(t, token.KindSession, claims.Kind)
	require.True(t, fixedNow().Add(time.Hour).Equal(claims.ExpiresAt))
	require.False(t, claims.Expired(fixedNow()))
	require.True(t, claims.Expired(fixedNow().Add(time.Hour)))
}

func TestInspect_Opaque(t *testing.T) {
	_, err := token.Inspect("tok1")
	require.ErrorIs(t, err, token.ErrOpaque)

	_, err = token.Inspect("a.b.c")
	require.ErrorIs(t, err, token.ErrOpaque)

	_, err = token.Inspect("  ")
	require.Error(t, err)
}

func TestMinter_Verify(t *testing.T) {
	now := fixedNow()
	m := token.NewMinter(token.NewHMACSigner("secret"), token.WithNowFunc(func() time.Time { return now }))

	raw, _, err := m.Mint(token.MintRequest{Kind: token.KindGeneric, Subject: "u1", TTL: time.Minute})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		claims, err := m.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, "u1", claims.Subject)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := token.NewMinter(token.NewHMACSigner("other"), token.WithNowFunc(fixedNow))
		_, err := other.Verify(raw)
		require.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("revoked", func(t *testing.T) {
		raw2, _, err := m.Mint(token.MintRequest{Kind: token.KindGeneric, Subject: "u2"})
		require.NoError(t, err)
		require.NoError(t, m.Revoke(raw2))
		_, err = m.Verify(raw2)
		require.ErrorIs(t, err, token.ErrTokenRevoked)
	})

	t.Run("expired", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, err := m.Verify(raw)
		require.ErrorIs(t, err, token.ErrTokenExpired)
	})
}

func TestRevocationList_Prune(t *testing.T) {
	list := token.NewRevocationList()
	list.Revoke("a", fixedNow().Add(time.Minute))
	list.Revoke("b", fixedNow().Add(time.Hour))
	list.Revoke("c", time.Time{})

	require.Equal(t, 3, list.Prune(fixedNow()))
	require.Equal(t, 2, list.Prune(fixedNow().Add(time.Minute)))
	require.False(t, list.Revoked("a"))
	require.True(t, list.Revoked("b"))
	require.True(t, list.Revoked("c"))
}
