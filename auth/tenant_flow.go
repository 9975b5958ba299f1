package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/jrsteele09/tramcan-session/tenants"
)

// TenantLogin authenticates the customer account. Allowed from LevelNone
// and LevelTenant; at LevelStation the caller must log out first.
func (c *Controller) TenantLogin(ctx context.Context, maKhachHang, password string) Result[sessions.TenantSession] {
	maKhachHang = strings.TrimSpace(maKhachHang)
	if err := c.validator.ValidateCredentials("maKhachHang", maKhachHang, password); err != nil {
		return errWithCause[sessions.TenantSession](KindValidation, err.Error(), err)
	}
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[sessions.TenantSession](kind)
	}
	defer release()

	if err := c.validator.ValidateLevel(c.store.Level(), LevelNone, LevelTenant); err != nil {
		return errWithCause[sessions.TenantSession](KindValidation, "already signed in at a station, log out first", err)
	}

	data, err := c.api.TenantLogin(ctx, backend.TenantLoginRequest{MaKhachHang: maKhachHang, Password: password})
	if err != nil {
		c.logger.Info().Err(err).Str("maKhachHang", maKhachHang).Msg("tenant login failed")
		return classify[sessions.TenantSession]("tenant login", err)
	}
	if data.SessionToken == "" {
		return Err[sessions.TenantSession](KindBackend, "server returned no session token")
	}

	ts := sessions.TenantSession{SessionToken: data.SessionToken, KhachHang: data.KhachHang, TramCans: data.TramCans}
	if err := c.store.SaveTenantSession(persistContext(ctx), ts); err != nil {
		c.logger.Error().Err(err).Msg("could not persist tenant session")
		return errWithCause[sessions.TenantSession](KindStorage, "could not save the session on this device", err)
	}
	c.setStations(data.TramCans, true)

	c.logger.Info().Str("maKhachHang", maKhachHang).Int("stations", len(data.TramCans)).Msg("tenant signed in")
	c.changed()
	return Ok(ts)
}

// SelectStation moves LevelTenant to LevelStation. stationID must be in the
// cached station list; otherwise nothing is sent.
func (c *Controller) SelectStation(ctx context.Context, sessionToken string, stationID int64) Result[Void] {
	if err := c.validator.ValidateStationID(stationID); err != nil {
		return errWithCause[Void](KindValidation, err.Error(), err)
	}
	if sessionToken == "" {
		return errWithCause[Void](KindValidation, SessionTokenMissingErr.Error(), SessionTokenMissingErr)
	}
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[Void](kind)
	}
	defer release()

	snap := c.store.Snapshot()
	if err := c.validator.ValidateLevel(snap.Level, LevelTenant); err != nil {
		return errWithCause[Void](KindValidation, "select a station after signing in", err)
	}
	stations, known := c.Stations()
	if err := c.validator.ValidateMembership(stations, known, stationID); err != nil {
		return errWithCause[Void](KindValidation, err.Error(), err)
	}

	data, err := c.api.SelectStation(ctx, sessionToken, stationID)
	if err != nil {
		return classify[Void]("select station", err)
	}

	token := data.SessionToken
	if token == "" {
		token = sessionToken
	}
	info, res := c.scopeFromReply(data, stationID, snap, stations)
	if !res.IsOk() {
		return res
	}
	if err := c.store.SaveTenantInfo(persistContext(ctx), info, token); err != nil {
		c.logger.Error().Err(err).Msg("could not persist selected station")
		return errWithCause[Void](KindStorage, "could not save the station on this device", err)
	}

	c.logger.Info().Int64("station_id", stationID).Msg("station selected")
	c.changed()
	return Ok(Void{})
}

// SwitchStation moves to another station without re-authenticating the
// tenant. The new token and station are persisted before it returns; on
// failure neither is touched. Any station user session is dropped.
func (c *Controller) SwitchStation(ctx context.Context, stationID int64) Result[Void] {
	if err := c.validator.ValidateStationID(stationID); err != nil {
		return errWithCause[Void](KindValidation, err.Error(), err)
	}
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[Void](kind)
	}
	defer release()

	snap := c.store.Snapshot()
	if err := c.validator.ValidateLevel(snap.Level, LevelStation); err != nil {
		return errWithCause[Void](KindValidation, "no station selected yet", err)
	}
	if snap.TenantInfo.SelectedStation.ID == stationID {
		return Ok(Void{})
	}

	// A known list that lacks the id is rejected without a round trip.
	if cached, known := c.Stations(); known && !cached.Contains(stationID) {
		err := c.validator.ValidateMembership(cached, known, stationID)
		return errWithCause[Void](KindValidation, err.Error(), err)
	}

	fresh, err := c.api.MyStations(ctx)
	if err != nil {
		return classify[Void]("switch station", err)
	}
	c.setStations(fresh, true)
	if err := c.validator.ValidateMembership(fresh, true, stationID); err != nil {
		return errWithCause[Void](KindValidation, err.Error(), err)
	}

	data, err := c.api.SwitchStation(ctx, stationID)
	if err != nil {
		return classify[Void]("switch station", err)
	}
	if data.SessionToken == "" {
		return Err[Void](KindBackend, "server returned no session token")
	}
	info, res := c.scopeFromReply(data, stationID, snap, fresh)
	if !res.IsOk() {
		return res
	}

	pctx := persistContext(ctx)
	if err := c.store.SaveTenantInfo(pctx, info, data.SessionToken); err != nil {
		c.logger.Error().Err(err).Msg("could not persist switched station")
		return errWithCause[Void](KindStorage, "could not save the station on this device", err)
	}
	if err := c.store.ClearStationUser(pctx); err != nil {
		c.logger.Warn().Err(err).Msg("station user session not removed from storage")
	}

	c.logger.Info().Int64("from", snap.TenantInfo.SelectedStation.ID).Int64("to", stationID).Msg("station switched")
	c.changed()
	return Ok(Void{})
}

// scopeFromReply builds the TenantInfo to persist, filling fields the
// backend left out from local state.
func (c *Controller) scopeFromReply(data backend.StationScopeData, stationID int64, snap sessions.Snapshot, stations tenants.Stations) (sessions.TenantInfo, Result[Void]) {
	info := sessions.TenantInfo{KhachHang: data.KhachHang, SelectedStation: data.SelectedStation}
	if info.KhachHang.MaKhachHang == "" {
		switch {
		case snap.TenantInfo != nil:
			info.KhachHang = snap.TenantInfo.KhachHang
		case snap.TenantSession != nil:
			info.KhachHang = snap.TenantSession.KhachHang
		}
	}
	if info.SelectedStation.ID == 0 {
		info.SelectedStation, _ = stations.Find(stationID)
	}
	if info.SelectedStation.ID != stationID {
		c.logger.Warn().Int64("requested", stationID).Int64("returned", info.SelectedStation.ID).Msg("backend scoped a different station")
		return info, Err[Void](KindBackend, "server selected a different station")
	}
	if err := info.Validate(); err != nil {
		return info, errWithCause[Void](KindBackend, "server returned an incomplete station record", err)
	}
	return info, Ok(Void{})
}

// GetMyStations refreshes the station list. It waits for an in-flight
// mutating operation but does not take the slot.
func (c *Controller) GetMyStations(ctx context.Context) Result[tenants.Stations] {
	c.opLock.RLock()
	defer c.opLock.RUnlock()
	return c.getMyStations(ctx)
}

func (c *Controller) getMyStations(ctx context.Context) Result[tenants.Stations] {
	if err := c.validator.ValidateLevel(c.store.Level(), LevelTenant, LevelStation); err != nil {
		return errWithCause[tenants.Stations](KindUnauthorized, "sign in first", err)
	}
	stations, err := c.api.MyStations(ctx)
	if err != nil {
		return classify[tenants.Stations]("get stations", err)
	}
	c.setStations(stations, true)
	c.changed()
	return Ok(stations.Clone())
}

// ValidateCurrentStation re-fetches the list and reports whether the
// selected station is still in it. Ok(false) means the session is stale;
// the caller decides whether to log out.
func (c *Controller) ValidateCurrentStation(ctx context.Context) Result[bool] {
	c.opLock.RLock()
	defer c.opLock.RUnlock()

	info := c.store.Snapshot().TenantInfo
	if info == nil {
		return Err[bool](KindValidation, "no station selected")
	}
	res := c.getMyStations(ctx)
	if !res.IsOk() {
		return errWithCause[bool](res.Kind(), res.Message(), res.Error())
	}
	valid := res.Value().Contains(info.SelectedStation.ID)
	if !valid {
		c.logger.Warn().Int64("station_id", info.SelectedStation.ID).Msg("selected station no longer listed")
	}
	return Ok(valid)
}
