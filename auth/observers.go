package auth

import (
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/jrsteele09/tramcan-session/tenants"
)

// State is the read-only session view handed to observers.
type State struct {
	Level         Level
	TenantSession *sessions.TenantSession
	TenantInfo    *sessions.TenantInfo
	StationUser   *sessions.StationUser
	Stations      tenants.Stations
	StationsKnown bool
	User          *sessions.UserProfile
	GenericAuth   bool // an auth_token is held
}

// Route is the screen stack a front-end should show.
type Route string

const (
	RouteTenantLogin   Route = "tenant_login"   // LevelNone
	RouteStationPicker Route = "station_picker" // LevelTenant with a cached station list
	RouteLoadStations  Route = "load_stations"  // LevelTenant, list must be fetched first
	RouteStationHome   Route = "station_home"   // LevelStation
)

// Route derives from the level alone, plus the station cache at
// LevelTenant.
func (s State) Route() Route {
	switch s.Level {
	case LevelStation:
		return RouteStationHome
	case LevelTenant:
		if s.StationsKnown {
			return RouteStationPicker
		}
		return RouteLoadStations
	default:
		return RouteTenantLogin
	}
}

func (c *Controller) State() State {
	snap := c.store.Snapshot()
	stations, known := c.Stations()
	return State{
		Level:         snap.Level,
		TenantSession: snap.TenantSession,
		TenantInfo:    snap.TenantInfo,
		StationUser:   snap.StationUser,
		Stations:      stations,
		StationsKnown: known,
		User:          snap.User,
		GenericAuth:   snap.AuthToken != "",
	}
}

func (c *Controller) Route() Route {
	return c.State().Route()
}

// Subscribe registers fn to be called after every state change. Calls are
// synchronous on the goroutine that made the change, so fn must not call
// the controller's operations. Reading State, Level and Stations is fine.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.observersLock.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.observersLock.Unlock()

	return func() {
		c.observersLock.Lock()
		defer c.observersLock.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) notify(state State) {
	c.observersLock.Lock()
	fns := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.observersLock.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (c *Controller) changed() {
	c.notify(c.State())
}
