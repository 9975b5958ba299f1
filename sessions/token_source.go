package sessions

import (
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"golang.org/x/oauth2"
)

// liveSource reads the token on every call, so a token replaced by a
// station switch is used by the very next request.
type liveSource func() string

func (f liveSource) Token() (*oauth2.Token, error) {
	t := f()
	if t == "" {
		return nil, interrors.ErrNoToken
	}
	return &oauth2.Token{AccessToken: t, TokenType: "Bearer"}, nil
}

// SessionTokenSource serves the tenant/station session token.
func (s *Store) SessionTokenSource() oauth2.TokenSource {
	return liveSource(s.SessionToken)
}

// AuthTokenSource serves the generic resource API token.
func (s *Store) AuthTokenSource() oauth2.TokenSource {
	return liveSource(s.AuthToken)
}

// StationUserTokenSource serves the station user's token, falling back to
// the session token when no user is signed in.
func (s *Store) StationUserTokenSource() oauth2.TokenSource {
	return liveSource(func() string {
		if t := s.StationUserToken(); t != "" {
			return t
		}
		return s.SessionToken()
	})
}
