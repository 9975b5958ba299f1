package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/sessions"
)

// StationUserLogin signs a staff member in at the selected station. It does
// not change the level.
func (c *Controller) StationUserLogin(ctx context.Context, nvID, password string) Result[Void] {
	nvID = strings.TrimSpace(nvID)
	if err := c.validator.ValidateCredentials("nvId", nvID, password); err != nil {
		return errWithCause[Void](KindValidation, err.Error(), err)
	}
	release, kind := c.acquire(ctx)
	if release == nil {
		return busyResult[Void](kind)
	}
	defer release()

	snap := c.store.Snapshot()
	if err := c.validator.ValidateLevel(snap.Level, LevelStation); err != nil {
		return errWithCause[Void](KindValidation, "select a station before staff sign-in", err)
	}

	data, err := c.api.StationUserLogin(ctx, backend.StationUserLoginRequest{NvID: nvID, Password: password})
	if err != nil {
		c.logger.Info().Err(err).Str("nvId", nvID).Msg("station user login failed")
		return classify[Void]("station user login", err)
	}
	if data.Token == "" {
		return Err[Void](KindBackend, "server returned no staff token")
	}

	su := sessions.StationUser{
		NvID:        data.NvID,
		TenNhanVien: data.TenNhanVien,
		VaiTro:      data.VaiTro,
		Token:       data.Token,
		StationID:   snap.TenantInfo.SelectedStation.ID,
	}
	if su.NvID == "" {
		su.NvID = nvID
	}
	if err := c.store.SaveStationUser(persistContext(ctx), su); err != nil {
		c.logger.Error().Err(err).Msg("could not persist station user")
		return errWithCause[Void](KindStorage, "could not save the staff session on this device", err)
	}

	c.logger.Info().Str("nvId", su.NvID).Int64("station_id", su.StationID).Msg("station user signed in")
	c.changed()
	return Ok(Void{})
}

// Logout ends every session: tenant, station, station user and the generic
// login. It always succeeds for the caller; failures are logged. It waits
// for an in-flight operation even when the controller rejects overlapping
// calls. If ctx ends first, Logout returns and the sign-out still runs once
// the slot frees up.
func (c *Controller) Logout(ctx context.Context) {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		c.logger.Info().Msg("sign-out deferred until the current operation finishes")
		go func() {
			c.slot <- struct{}{}
			c.logout(context.WithoutCancel(ctx))
		}()
		return
	}
	c.logout(ctx)
}

// logout is called with slot taken and releases it.
func (c *Controller) logout(ctx context.Context) {
	release := c.own()
	defer release()

	if c.store.AuthToken() != "" {
		if err := c.api.Logout(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("backend logout failed")
		}
	}
	if err := c.store.ClearAll(persistContext(ctx)); err != nil {
		c.logger.Error().Err(err).Msg("could not clear every persisted key")
	}
	c.setStations(nil, false)

	c.logger.Info().Msg("signed out")
	c.changed()
}
