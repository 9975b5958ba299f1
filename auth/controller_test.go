package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/tramcan-session/auth"
	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/backend/backendfake"
	"github.com/jrsteele09/tramcan-session/httpclient"
	"github.com/jrsteele09/tramcan-session/internal/app"
	"github.com/jrsteele09/tramcan-session/internal/config"
	kvstorefake "github.com/jrsteele09/tramcan-session/kvstore/repofake"
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testTenant       = "KH001"
	testPassword     = "secret"
	testStation      = int64(7)
	otherStation     = int64(8)
	unlistedStation  = int64(9)
	testStaff        = "NV01"
	testStaffPass    = "123456"
	testUsername     = "admin"
	testUserPassword = "admin123"
)

// testFixture holds a fake backend and a controller wired against it.
type testFixture struct {
	fake   *backendfake.Server
	server *httptest.Server
	kv     *kvstorefake.FakeStore
	app    *app.App
	ctrl   *auth.Controller
}

func setupTestFixture(t *testing.T, options ...auth.ControllerOption) *testFixture {
	t.Helper()

	fake := backendfake.New(backendfake.WithLogger(zerolog.Nop()))
	require.NoError(t, fake.Seed(backendfake.DemoData()))
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	t.Setenv("BASE_URL", server.URL)

	f := &testFixture{fake: fake, server: server, kv: kvstorefake.NewFakeStore()}
	f.app, f.ctrl = f.start(t, options...)
	return f
}

// start builds an App over the fixture's store, as a fresh process would.
func (f *testFixture) start(t *testing.T, options ...auth.ControllerOption) (*app.App, *auth.Controller) {
	t.Helper()
	a, err := app.New(context.Background(), config.New(),
		app.WithKVStore(f.kv), app.WithControllerOptions(options...))
	require.NoError(t, err)
	return a, a.Controller
}

func (f *testFixture) tenantLogin(t *testing.T) sessions.TenantSession {
	t.Helper()
	res := f.ctrl.TenantLogin(context.Background(), testTenant, testPassword)
	require.True(t, res.IsOk(), res.Message())
	return res.Value()
}

func (f *testFixture) signInAtStation(t *testing.T, stationID int64) {
	t.Helper()
	ts := f.tenantLogin(t)
	res := f.ctrl.SelectStation(context.Background(), ts.SessionToken, stationID)
	require.True(t, res.IsOk(), res.Message())
}

func TestScenario_FreshInstall(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, auth.LevelNone, f.ctrl.Level())
	require.Equal(t, auth.RouteTenantLogin, f.ctrl.Route())
	require.Empty(t, f.ctrl.StationDisplayName())
	require.Nil(t, f.ctrl.TenantInfo())
}

func TestTenantLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success caches stations", func(t *testing.T) {
		f := setupTestFixture(t)
		ts := f.tenantLogin(t)
		require.NotEmpty(t, ts.SessionToken)
		require.Len(t, ts.TramCans, 2)
		require.Equal(t, auth.LevelTenant, f.ctrl.Level())
		require.Equal(t, auth.RouteStationPicker, f.ctrl.Route())
		require.Equal(t, ts.SessionToken, f.kv.Snapshot()["session_token"])
		require.Equal(t, testTenant, f.ctrl.TenantSessionData().KhachHang.MaKhachHang)
	})

	t.Run("bad password is a backend failure without persistence", func(t *testing.T) {
		f := setupTestFixture(t)
		res := f.ctrl.TenantLogin(ctx, testTenant, "wrong")
		require.False(t, res.IsOk())
		require.Equal(t, auth.KindBackend, res.Kind())
		require.Equal(t, "invalid customer code or password", res.Message())
		require.Equal(t, auth.LevelNone, f.ctrl.Level())
		require.Empty(t, f.kv.Snapshot())
	})

	t.Run("empty credentials never reach the network", func(t *testing.T) {
		f := setupTestFixture(t)
		res := f.ctrl.TenantLogin(ctx, "  ", testPassword)
		require.Equal(t, auth.KindValidation, res.Kind())
		res = f.ctrl.TenantLogin(ctx, testTenant, "")
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, 0, f.fake.TotalHits())
	})

	t.Run("not allowed at station level", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		hits := f.fake.TotalHits()
		res := f.ctrl.TenantLogin(ctx, testTenant, testPassword)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, hits, f.fake.TotalHits())
		require.Equal(t, auth.LevelStation, f.ctrl.Level())
	})

	t.Run("unreachable backend", func(t *testing.T) {
		f := setupTestFixture(t)
		f.server.Close()
		res := f.ctrl.TenantLogin(ctx, testTenant, testPassword)
		require.Equal(t, auth.KindUnreachable, res.Kind())
		require.Equal(t, auth.LevelNone, f.ctrl.Level())
	})

	t.Run("storage failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.kv.FailSet("tenant_session", errors.New("disk full"))
		res := f.ctrl.TenantLogin(ctx, testTenant, testPassword)
		require.Equal(t, auth.KindStorage, res.Kind())
		require.Equal(t, auth.LevelNone, f.ctrl.Level())
	})
}

func TestSelectStation(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		require.Equal(t, auth.LevelStation, f.ctrl.Level())
		require.Equal(t, testStation, f.ctrl.TenantInfo().SelectedStation.ID)
		require.Equal(t, "Tram can Cat Lai", f.ctrl.StationDisplayName())
		require.Equal(t, auth.RouteStationHome, f.ctrl.Route())
		_, hasTenantSession := f.kv.Snapshot()["tenant_session"]
		require.False(t, hasTenantSession)
	})

	t.Run("station not in list performs zero network calls", func(t *testing.T) {
		f := setupTestFixture(t)
		ts := f.tenantLogin(t)
		hits := f.fake.TotalHits()
		before := f.kv.Snapshot()

		res := f.ctrl.SelectStation(ctx, ts.SessionToken, unlistedStation)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, hits, f.fake.TotalHits())
		require.Equal(t, before, f.kv.Snapshot())
		require.Equal(t, auth.LevelTenant, f.ctrl.Level())
	})

	t.Run("unknown station list after restart is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.kv.Put("session_token", "restored-token")
		_, ctrl := f.start(t)
		require.Equal(t, auth.LevelTenant, ctrl.Level())
		require.Equal(t, auth.RouteLoadStations, ctrl.Route())

		res := ctrl.SelectStation(ctx, "restored-token", testStation)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, 0, f.fake.TotalHits())
	})

	t.Run("backend rejection leaves tenant level", func(t *testing.T) {
		f := setupTestFixture(t)
		ts := f.tenantLogin(t)
		f.fake.DeactivateStation(testStation)

		res := f.ctrl.SelectStation(ctx, ts.SessionToken, testStation)
		require.Equal(t, auth.KindBackend, res.Kind())
		require.Equal(t, auth.LevelTenant, f.ctrl.Level())
	})
}

func TestSwitchStation(t *testing.T) {
	ctx := context.Background()

	t.Run("unlisted station is rejected and state unchanged", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		require.True(t, f.ctrl.GetMyStations(ctx).IsOk())
		hits := f.fake.TotalHits()

		res := f.ctrl.SwitchStation(ctx, unlistedStation)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, auth.LevelStation, f.ctrl.Level())
		require.Equal(t, testStation, f.ctrl.TenantInfo().SelectedStation.ID)
		require.Equal(t, hits, f.fake.TotalHits())
	})

	t.Run("same station is a no-op", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		hits := f.fake.TotalHits()
		res := f.ctrl.SwitchStation(ctx, testStation)
		require.True(t, res.IsOk())
		require.Equal(t, hits, f.fake.TotalHits())
	})

	t.Run("new token persisted before return", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		oldToken := f.app.Sessions.SessionToken()

		res := f.ctrl.SwitchStation(ctx, otherStation)
		require.True(t, res.IsOk(), res.Message())

		newToken := f.kv.Snapshot()["session_token"]
		require.NotEqual(t, oldToken, newToken)
		require.Equal(t, newToken, f.app.Sessions.SessionToken())
		require.Equal(t, otherStation, f.ctrl.TenantInfo().SelectedStation.ID)

		// The old token is revoked server side; the next call must use the new one.
		stations := f.ctrl.GetMyStations(ctx)
		require.True(t, stations.IsOk(), stations.Message())

		_, ctrl := f.start(t)
		require.Equal(t, otherStation, ctrl.TenantInfo().SelectedStation.ID)
	})

	t.Run("backend failure is all or nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		before := f.kv.Snapshot()
		beforeInfo := *f.ctrl.TenantInfo()

		f.fake.FailNext(backend.RouteSwitchStation, http.StatusInternalServerError)
		res := f.ctrl.SwitchStation(ctx, otherStation)
		require.False(t, res.IsOk())

		require.Equal(t, before["session_token"], f.kv.Snapshot()["session_token"])
		require.Equal(t, before["tenant_info"], f.kv.Snapshot()["tenant_info"])
		require.Equal(t, beforeInfo, *f.ctrl.TenantInfo())
	})

	t.Run("storage failure is all or nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		before := f.kv.Snapshot()
		token := f.app.Sessions.SessionToken()

		f.kv.FailSet("tenant_info", errors.New("disk full"))
		res := f.ctrl.SwitchStation(ctx, otherStation)
		require.Equal(t, auth.KindStorage, res.Kind())
		require.Equal(t, before, f.kv.Snapshot())
		require.Equal(t, token, f.app.Sessions.SessionToken())
		require.Equal(t, testStation, f.ctrl.TenantInfo().SelectedStation.ID)
	})

	t.Run("unknown list is fetched first", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		_, ctrl := f.start(t)
		_, known := ctrl.Stations()
		require.False(t, known)

		hits := f.fake.Hits(backend.RouteMyStations)
		res := ctrl.SwitchStation(ctx, unlistedStation)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, hits+1, f.fake.Hits(backend.RouteMyStations))
		require.Equal(t, 0, f.fake.Hits(backend.RouteSwitchStation))

		res = ctrl.SwitchStation(ctx, otherStation)
		require.True(t, res.IsOk(), res.Message())
	})

	t.Run("drops the station user session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		require.True(t, f.ctrl.StationUserLogin(ctx, testStaff, testStaffPass).IsOk())
		require.NotNil(t, f.ctrl.StationUser())

		require.True(t, f.ctrl.SwitchStation(ctx, otherStation).IsOk())
		require.Nil(t, f.ctrl.StationUser())
		_, hasUser := f.kv.Snapshot()["station_user"]
		require.False(t, hasUser)
	})

	t.Run("requires station level", func(t *testing.T) {
		f := setupTestFixture(t)
		f.tenantLogin(t)
		res := f.ctrl.SwitchStation(ctx, otherStation)
		require.Equal(t, auth.KindValidation, res.Kind())
	})
}

func TestStationUserLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches without changing level", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		res := f.ctrl.StationUserLogin(ctx, testStaff, testStaffPass)
		require.True(t, res.IsOk(), res.Message())
		require.Equal(t, auth.LevelStation, f.ctrl.Level())
		require.Equal(t, "Nguyen Van An", f.ctrl.StationUser().TenNhanVien)
		require.Equal(t, testStation, f.ctrl.StationUser().StationID)

		_, ctrl := f.start(t)
		require.NotNil(t, ctrl.StationUser())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		res := f.ctrl.StationUserLogin(ctx, testStaff, "nope")
		require.Equal(t, auth.KindBackend, res.Kind())
		require.Nil(t, f.ctrl.StationUser())
	})

	t.Run("requires station level", func(t *testing.T) {
		f := setupTestFixture(t)
		f.tenantLogin(t)
		hits := f.fake.TotalHits()
		res := f.ctrl.StationUserLogin(ctx, testStaff, testStaffPass)
		require.Equal(t, auth.KindValidation, res.Kind())
		require.Equal(t, hits, f.fake.TotalHits())
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signInAtStation(t, testStation)
	require.True(t, f.ctrl.StationUserLogin(ctx, testStaff, testStaffPass).IsOk())
	require.True(t, f.ctrl.Login(ctx, testUsername, testUserPassword).IsOk())

	f.ctrl.Logout(ctx)
	require.Equal(t, auth.LevelNone, f.ctrl.Level())
	for _, key := range []string{"auth_token", "session_token", "tenant_info", "user_info"} {
		_, ok := f.kv.Snapshot()[key]
		require.False(t, ok, key)
	}
	once := f.kv.Snapshot()
	require.Equal(t, 1, f.fake.Hits(backend.RouteLogout))

	f.ctrl.Logout(ctx)
	require.Equal(t, once, f.kv.Snapshot())
	require.Equal(t, auth.LevelNone, f.ctrl.Level())
	require.Equal(t, 1, f.fake.Hits(backend.RouteLogout))

	_, ctrl := f.start(t)
	require.Equal(t, auth.LevelNone, ctrl.Level())
}

func TestLogout_StorageFailureIsNotSurfaced(t *testing.T) {
	f := setupTestFixture(t)
	f.signInAtStation(t, testStation)
	f.kv.FailRemove("tenant_info", errors.New("io error"))

	f.ctrl.Logout(context.Background())
	require.Equal(t, auth.LevelNone, f.ctrl.Level())
	require.Empty(t, f.app.Sessions.SessionToken())
}

func TestScenario_UnauthorizedClearsGenericToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signInAtStation(t, testStation)
	login := f.ctrl.Login(ctx, testUsername, testUserPassword)
	require.True(t, login.IsOk(), login.Message())
	require.True(t, f.ctrl.ValidateGenericToken(ctx).Value())

	require.NoError(t, f.fake.Revoke(f.app.Sessions.AuthToken()))
	res := f.ctrl.ValidateGenericToken(ctx)
	require.Equal(t, auth.KindUnauthorized, res.Kind())
	require.Equal(t, 2, f.fake.Hits(backend.RouteValidate))

	_, hasToken := f.kv.Snapshot()["auth_token"]
	require.False(t, hasToken)
	require.Equal(t, auth.LevelStation, f.ctrl.Level())
	require.False(t, f.ctrl.State().GenericAuth)

	res = f.ctrl.ValidateGenericToken(ctx)
	require.Equal(t, auth.KindUnauthorized, res.Kind())
	require.Equal(t, 2, f.fake.Hits(backend.RouteValidate))
}

func TestSessionUnauthorizedKeepsLevel(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signInAtStation(t, testStation)
	require.NoError(t, f.fake.Revoke(f.app.Sessions.SessionToken()))

	res := f.ctrl.GetMyStations(ctx)
	require.Equal(t, auth.KindUnauthorized, res.Kind())
	require.Equal(t, 1, f.fake.Hits(backend.RouteMyStations))
	require.Equal(t, auth.LevelStation, f.ctrl.Level())
}

func TestRestore(t *testing.T) {
	t.Run("station level with unknown stations", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)

		_, ctrl := f.start(t)
		require.Equal(t, auth.LevelStation, ctrl.Level())
		require.Equal(t, auth.RouteStationHome, ctrl.Route())
		require.Equal(t, "Tram can Cat Lai", ctrl.StationDisplayName())
		stations, known := ctrl.Stations()
		require.Empty(t, stations)
		require.False(t, known)

		res := ctrl.GetMyStations(context.Background())
		require.True(t, res.IsOk(), res.Message())
		_, known = ctrl.Stations()
		require.True(t, known)
	})

	t.Run("tenant level keeps cached stations", func(t *testing.T) {
		f := setupTestFixture(t)
		f.tenantLogin(t)

		_, ctrl := f.start(t)
		require.Equal(t, auth.LevelTenant, ctrl.Level())
		require.Equal(t, auth.RouteStationPicker, ctrl.Route())
		stations, known := ctrl.Stations()
		require.True(t, known)
		require.Len(t, stations, 2)
	})

	t.Run("corrupt tenant info falls back", func(t *testing.T) {
		f := setupTestFixture(t)
		f.kv.Put("tenant_info", "{broken")
		_, ctrl := f.start(t)
		require.Equal(t, auth.LevelNone, ctrl.Level())
	})
}

func TestValidateCurrentStation(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signInAtStation(t, testStation)

	res := f.ctrl.ValidateCurrentStation(ctx)
	require.True(t, res.IsOk())
	require.True(t, res.Value())

	f.fake.DeactivateStation(testStation)
	res = f.ctrl.ValidateCurrentStation(ctx)
	require.True(t, res.IsOk())
	require.False(t, res.Value())
	require.Equal(t, auth.LevelStation, f.ctrl.Level())
}

func TestConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("overlapping call is rejected as busy", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithRejectWhenBusy())
		f.signInAtStation(t, testStation)
		release := f.fake.Hold(backend.RouteSwitchStation)
		defer release()

		var wg sync.WaitGroup
		var first auth.Result[auth.Void]
		wg.Add(1)
		go func() {
			defer wg.Done()
			first = f.ctrl.SwitchStation(ctx, otherStation)
		}()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteSwitchStation) == 1 }, 2*time.Second, 5*time.Millisecond)

		second := f.ctrl.SwitchStation(ctx, otherStation)
		require.Equal(t, auth.KindBusy, second.Kind())

		release()
		wg.Wait()
		require.True(t, first.IsOk(), first.Message())
		require.Equal(t, 1, f.fake.Hits(backend.RouteSwitchStation))
		require.Equal(t, otherStation, f.ctrl.TenantInfo().SelectedStation.ID)
	})

	t.Run("waiting caller can give up", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		release := f.fake.Hold(backend.RouteSwitchStation)
		defer release()

		done := make(chan auth.Result[auth.Void], 1)
		go func() { done <- f.ctrl.SwitchStation(ctx, otherStation) }()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteSwitchStation) == 1 }, 2*time.Second, 5*time.Millisecond)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		res := f.ctrl.StationUserLogin(waitCtx, testStaff, testStaffPass)
		require.Equal(t, auth.KindCanceled, res.Kind())

		release()
		require.True(t, (<-done).IsOk())
	})

	t.Run("reads wait for an in-flight switch", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		release := f.fake.Hold(backend.RouteSwitchStation)
		defer release()

		switched := make(chan auth.Result[auth.Void], 1)
		go func() { switched <- f.ctrl.SwitchStation(ctx, otherStation) }()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteSwitchStation) == 1 }, 2*time.Second, 5*time.Millisecond)
		listed := f.fake.Hits(backend.RouteMyStations)

		validated := make(chan auth.Result[bool], 1)
		go func() { validated <- f.ctrl.ValidateCurrentStation(ctx) }()
		require.Never(t, func() bool { return len(validated) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
		require.Equal(t, listed, f.fake.Hits(backend.RouteMyStations))

		f.fake.DeactivateStation(testStation)
		release()
		require.True(t, (<-switched).IsOk())
		res := <-validated
		require.True(t, res.IsOk(), res.Message())
		require.True(t, res.Value())
	})

	t.Run("sign-out waits for a station fetch", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		release := f.fake.Hold(backend.RouteMyStations)
		defer release()

		fetched := make(chan auth.Result[tenants.Stations], 1)
		go func() { fetched <- f.ctrl.GetMyStations(ctx) }()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteMyStations) == 1 }, 2*time.Second, 5*time.Millisecond)

		loggedOut := make(chan struct{})
		go func() {
			defer close(loggedOut)
			f.ctrl.Logout(ctx)
		}()
		require.Never(t, func() bool {
			select {
			case <-loggedOut:
				return true
			default:
				return false
			}
		}, 50*time.Millisecond, 5*time.Millisecond)

		release()
		require.True(t, (<-fetched).IsOk())
		<-loggedOut
		require.Equal(t, auth.LevelNone, f.ctrl.Level())
		_, known := f.ctrl.Stations()
		require.False(t, known)
	})

	t.Run("generic validation and login do not interleave", func(t *testing.T) {
		f := setupTestFixture(t)
		require.True(t, f.ctrl.Login(ctx, testUsername, testUserPassword).IsOk())
		require.NoError(t, f.fake.Revoke(f.app.Sessions.AuthToken()))
		release := f.fake.Hold(backend.RouteValidate)
		defer release()

		validated := make(chan auth.Result[bool], 1)
		go func() { validated <- f.ctrl.ValidateGenericToken(ctx) }()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteValidate) == 1 }, 2*time.Second, 5*time.Millisecond)

		loggedIn := make(chan auth.Result[sessions.UserProfile], 1)
		go func() { loggedIn <- f.ctrl.Login(ctx, testUsername, testUserPassword) }()
		require.Never(t, func() bool { return f.fake.Hits(backend.RouteLogin) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

		release()
		require.Equal(t, auth.KindUnauthorized, (<-validated).Kind())
		require.True(t, (<-loggedIn).IsOk())
		fresh := f.app.Sessions.AuthToken()
		require.NotEmpty(t, fresh)
		require.Equal(t, fresh, f.kv.Snapshot()["auth_token"])
		require.True(t, f.ctrl.ValidateGenericToken(ctx).Value())
	})

	t.Run("abandoned sign-out still runs", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signInAtStation(t, testStation)
		release := f.fake.Hold(backend.RouteSwitchStation)
		defer release()

		switched := make(chan auth.Result[auth.Void], 1)
		go func() { switched <- f.ctrl.SwitchStation(ctx, otherStation) }()
		require.Eventually(t, func() bool { return f.fake.Hits(backend.RouteSwitchStation) == 1 }, 2*time.Second, 5*time.Millisecond)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		returned := make(chan struct{})
		go func() {
			defer close(returned)
			f.ctrl.Logout(waitCtx)
		}()
		select {
		case <-returned:
		case <-time.After(2 * time.Second):
			t.Fatal("Logout did not return after its context ended")
		}
		require.Equal(t, auth.LevelStation, f.ctrl.Level())

		release()
		require.True(t, (<-switched).IsOk())
		require.Eventually(t, func() bool { return f.ctrl.Level() == auth.LevelNone }, 2*time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			_, ok := f.kv.Snapshot()["tenant_info"]
			return !ok
		}, 2*time.Second, 5*time.Millisecond)
		require.Empty(t, f.app.Sessions.SessionToken())
	})
}

func TestHandleUnauthorized_StaleToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.True(t, f.ctrl.Login(ctx, testUsername, testUserPassword).IsOk())
	stale := f.app.Sessions.AuthToken()
	require.True(t, f.ctrl.Login(ctx, testUsername, testUserPassword).IsOk())
	fresh := f.app.Sessions.AuthToken()
	require.NotEqual(t, stale, fresh)

	resend := f.ctrl.HandleUnauthorized(ctx, httpclient.Unauthorized{Scope: httpclient.ScopeGeneric, Token: stale})
	require.False(t, resend)
	require.Equal(t, fresh, f.app.Sessions.AuthToken())
	require.Equal(t, fresh, f.kv.Snapshot()["auth_token"])

	f.ctrl.HandleUnauthorized(ctx, httpclient.Unauthorized{Scope: httpclient.ScopeSession, Token: fresh})
	require.Equal(t, fresh, f.app.Sessions.AuthToken())

	f.ctrl.HandleUnauthorized(ctx, httpclient.Unauthorized{Scope: httpclient.ScopeGeneric, Token: fresh})
	require.Empty(t, f.app.Sessions.AuthToken())
	_, ok := f.kv.Snapshot()["auth_token"]
	require.False(t, ok)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	var lock sync.Mutex
	var levels []auth.Level
	unsubscribe := f.ctrl.Subscribe(func(s auth.State) {
		lock.Lock()
		defer lock.Unlock()
		levels = append(levels, s.Level)
	})

	f.signInAtStation(t, testStation)
	f.ctrl.Logout(ctx)
	unsubscribe()
	f.tenantLogin(t)

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []auth.Level{auth.LevelTenant, auth.LevelStation, auth.LevelNone}, levels)
}

func TestGenericLogin(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	res := f.ctrl.Login(ctx, testUsername, "bad")
	require.Equal(t, auth.KindBackend, res.Kind())

	res = f.ctrl.Login(ctx, testUsername, testUserPassword)
	require.True(t, res.IsOk(), res.Message())
	require.Equal(t, testUsername, res.Value().Username)
	require.Equal(t, auth.LevelNone, f.ctrl.Level())
	require.True(t, f.ctrl.State().GenericAuth)

	out := f.ctrl.LogoutGeneric(ctx)
	require.True(t, out.IsOk())
	require.False(t, f.ctrl.State().GenericAuth)
	require.Nil(t, f.ctrl.State().User)
}

func TestResultError(t *testing.T) {
	ok := auth.Ok(42)
	require.True(t, ok.IsOk())
	require.NoError(t, ok.Error())
	require.Equal(t, 42, ok.Value())

	failed := auth.Err[int](auth.KindBusy, "busy")
	require.False(t, failed.IsOk())
	require.Zero(t, failed.Value())
	var resErr *auth.ResultError
	require.ErrorAs(t, failed.Error(), &resErr)
	require.Equal(t, auth.KindBusy, resErr.Kind)
	require.Equal(t, "busy: busy", resErr.Error())
}
