package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/tramcan-session/httpclient"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/pkg/errors"
)

// Doer sends one logical request. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, call httpclient.Call) (*httpclient.Response, error)
}

// Client exposes the backend endpoints as typed calls. It holds no state.
type Client struct {
	http Doer
}

func New(doer Doer) *Client {
	return &Client{http: doer}
}

func (c *Client) TenantLogin(ctx context.Context, req TenantLoginRequest) (TenantLoginData, error) {
	return call[TenantLoginData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopePublic, Method: http.MethodPost, Path: RouteTenantLogin, Body: req,
	}, true)
}

func (c *Client) MyStations(ctx context.Context) (tenants.Stations, error) {
	return call[tenants.Stations](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeSession, Method: http.MethodGet, Path: RouteMyStations,
	}, true)
}

// SelectStation authenticates with sessionToken rather than the stored one;
// no station scope exists yet when it is called.
func (c *Client) SelectStation(ctx context.Context, sessionToken string, stationID int64) (StationScopeData, error) {
	return call[StationScopeData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeSession, Method: http.MethodPost, Path: RouteSelectStation,
		Body: StationRequest{StationID: stationID}, Token: sessionToken,
	}, true)
}

func (c *Client) SwitchStation(ctx context.Context, stationID int64) (StationScopeData, error) {
	return call[StationScopeData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeSession, Method: http.MethodPost, Path: RouteSwitchStation,
		Body: StationRequest{StationID: stationID},
	}, true)
}

func (c *Client) StationUserLogin(ctx context.Context, req StationUserLoginRequest) (StationUserData, error) {
	return call[StationUserData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeSession, Method: http.MethodPost, Path: RouteStationUserLogin, Body: req,
	}, true)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginData, error) {
	return call[LoginData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopePublic, Method: http.MethodPost, Path: RouteLogin, Body: req,
	}, true)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := call[json.RawMessage](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeGeneric, Method: http.MethodPost, Path: RouteLogout,
	}, false)
	return err
}

func (c *Client) Validate(ctx context.Context) (ValidateData, error) {
	return call[ValidateData](ctx, c.http, httpclient.Call{
		Scope: httpclient.ScopeGeneric, Method: http.MethodGet, Path: RouteValidate,
	}, true)
}

func call[T any](ctx context.Context, doer Doer, hc httpclient.Call, requireData bool) (T, error) {
	var zero T
	resp, err := doer.Do(ctx, hc)
	if err != nil {
		return zero, err
	}

	var env Envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return zero, errors.Wrapf(interrors.ErrHTTPStatus, "%s %s: status %d", hc.Method, hc.Path, resp.StatusCode)
		}
		return zero, errors.Wrapf(interrors.ErrBadEnvelope, "%s %s: %v", hc.Method, hc.Path, err)
	}
	if !env.Success {
		return zero, &RejectedError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return zero, errors.Wrapf(interrors.ErrHTTPStatus, "%s %s: status %d", hc.Method, hc.Path, resp.StatusCode)
	}
	if env.Data == nil {
		if requireData {
			return zero, errors.Wrapf(interrors.ErrBadEnvelope, "%s %s: missing data", hc.Method, hc.Path)
		}
		return zero, nil
	}
	return *env.Data, nil
}
