package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/httpclient"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/pkg/errors"
)

// Login signs in to the generic resource API. It is independent of the
// tenant/station tier and does not change the level.
func (c *Controller) Login(ctx context.Context, username, password string) Result[sessions.UserProfile] {
	username = strings.TrimSpace(username)
	if err := c.validator.ValidateCredentials("username", username, password); err != nil {
		return errWithCause[sessions.UserProfile](KindValidation, err.Error(), err)
	}
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[sessions.UserProfile](kind)
	}
	defer release()

	data, err := c.api.Login(ctx, backend.LoginRequest{Username: username, Password: password})
	if err != nil {
		return classify[sessions.UserProfile]("login", err)
	}
	if data.Token == "" {
		return Err[sessions.UserProfile](KindBackend, "server returned no token")
	}

	profile := sessions.UserProfile{
		ID:       data.User.ID,
		Username: data.User.Username,
		FullName: data.User.FullName,
		Role:     data.User.Role,
	}
	if err := c.store.SaveGenericLogin(persistContext(ctx), data.Token, profile); err != nil {
		c.logger.Error().Err(err).Msg("could not persist generic login")
		return errWithCause[sessions.UserProfile](KindStorage, "could not save the login on this device", err)
	}
	c.changed()
	return Ok(profile)
}

// LogoutGeneric drops only the generic login.
func (c *Controller) LogoutGeneric(ctx context.Context) Result[Void] {
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[Void](kind)
	}
	defer release()

	if err := c.api.Logout(ctx); err != nil && !errors.Is(err, interrors.ErrNoToken) {
		c.logger.Warn().Err(err).Msg("backend logout failed")
	}
	err := c.store.ClearGenericLogin(persistContext(ctx))
	c.changed()
	if err != nil {
		return errWithCause[Void](KindStorage, "could not remove the login from this device", err)
	}
	return Ok(Void{})
}

// ValidateGenericToken asks the backend whether the auth_token is still
// accepted. Without a token it fails without a round trip.
func (c *Controller) ValidateGenericToken(ctx context.Context) Result[bool] {
	c.opLock.RLock()
	defer c.opLock.RUnlock()
	data, err := c.api.Validate(ctx)
	if err != nil {
		return classify[bool]("validate token", err)
	}
	return Ok(data.Valid)
}

// HandleUnauthorized is the HTTP client's 401 callback. A 401 on the
// generic API clears auth_token so later generic calls fail fast, but only
// while the stored token is still the one the rejected request carried. No
// scope is ever refreshed silently and the session level never changes here.
//
// It runs inside other operations' requests and must not take opLock.
func (c *Controller) HandleUnauthorized(ctx context.Context, u httpclient.Unauthorized) (resend bool) {
	c.logger.Warn().Str("scope", u.Scope.String()).Str("request_id", u.RequestID).Msg("backend answered 401")
	if u.Scope != httpclient.ScopeGeneric {
		return false
	}
	cleared, err := c.store.ClearAuthTokenIf(persistContext(ctx), u.Token)
	if err != nil {
		c.logger.Error().Err(err).Msg("could not remove auth token from storage")
	}
	if cleared {
		c.changed()
	}
	return false
}
