package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/tramcan-session/backend"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/sessions"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level = sessions.Level

const (
	LevelNone    = sessions.LevelNone
	LevelTenant  = sessions.LevelTenant
	LevelStation = sessions.LevelStation
)

// Backend is the subset of the backend contract the controller calls.
// *backend.Client implements it.
type Backend interface {
	TenantLogin(ctx context.Context, req backend.TenantLoginRequest) (backend.TenantLoginData, error)
	MyStations(ctx context.Context) (tenants.Stations, error)
	SelectStation(ctx context.Context, sessionToken string, stationID int64) (backend.StationScopeData, error)
	SwitchStation(ctx context.Context, stationID int64) (backend.StationScopeData, error)
	StationUserLogin(ctx context.Context, req backend.StationUserLoginRequest) (backend.StationUserData, error)
	Login(ctx context.Context, req backend.LoginRequest) (backend.LoginData, error)
	Logout(ctx context.Context) error
	Validate(ctx context.Context) (backend.ValidateData, error)
}

// Controller is the session state machine every screen talks to. Mutating
// operations are serialized through a single slot. Reads that consult the
// backend or the persisted session run under opLock's read side, so they
// see either the state before a mutation or the state after it.
type Controller struct {
	store     *sessions.Store
	api       Backend
	validator *Validator
	logger    zerolog.Logger

	slot           chan struct{}
	rejectWhenBusy bool
	// opLock is held for writing by whoever owns slot.
	opLock sync.RWMutex

	lock          sync.RWMutex
	stations      tenants.Stations
	stationsKnown bool

	observersLock sync.Mutex
	observers     map[int]func(State)
	nextObserver  int
}

type ControllerOption func(*Controller)

func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRejectWhenBusy makes an overlapping mutating call fail with KindBusy
// instead of waiting for the one in flight.
func WithRejectWhenBusy() ControllerOption {
	return func(c *Controller) {
		c.rejectWhenBusy = true
	}
}

func NewController(store *sessions.Store, api Backend, options ...ControllerOption) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[NewController] session store is required")
	}
	if api == nil {
		return nil, errors.New("[NewController] backend is required")
	}
	c := &Controller{
		store:     store,
		api:       api,
		validator: NewValidator(),
		logger:    log.Logger,
		slot:      make(chan struct{}, 1),
		observers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "auth_controller").Logger()
	return c, nil
}

// acquire takes the mutating-operation slot. On failure it returns the kind
// to report.
func (c *Controller) acquire(ctx context.Context) (release func(), kind ErrorKind) {
	if c.rejectWhenBusy {
		select {
		case c.slot <- struct{}{}:
			return c.own(), KindNone
		default:
			return nil, KindBusy
		}
	}
	select {
	case c.slot <- struct{}{}:
		return c.own(), KindNone
	case <-ctx.Done():
		return nil, KindCanceled
	}
}

// own is called with slot taken. Readers already inside finish first.
func (c *Controller) own() (release func()) {
	c.opLock.Lock()
	return func() {
		c.opLock.Unlock()
		<-c.slot
	}
}

func busyResult[T any](kind ErrorKind) Result[T] {
	if kind == KindBusy {
		return Err[T](KindBusy, "another session operation is in progress")
	}
	return Err[T](KindCanceled, "operation canceled")
}

// persistContext detaches writes from the caller's cancellation: once the
// backend has answered, the store must end up in a consistent state.
func persistContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (c *Controller) setStations(stations tenants.Stations, known bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stations = stations.Clone()
	c.stationsKnown = known
}

// Stations returns the last fetched station list and whether one has been
// fetched since login or restart.
func (c *Controller) Stations() (tenants.Stations, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.stations.Clone(), c.stationsKnown
}

// Restore loads the persisted session. It never fails: unreadable state
// restores as LevelNone.
func (c *Controller) Restore(ctx context.Context) State {
	c.opLock.RLock()
	defer c.opLock.RUnlock()
	snap := c.store.LoadOnStartup(ctx)
	switch {
	case snap.Level == LevelTenant && snap.TenantSession != nil && len(snap.TenantSession.TramCans) > 0:
		c.setStations(snap.TenantSession.TramCans, true)
	default:
		// At LevelStation the list is unknown until GetMyStations.
		c.setStations(nil, false)
	}
	state := c.State()
	c.notify(state)
	return state
}

// Level returns the active session level.
func (c *Controller) Level() Level {
	return c.store.Level()
}

func (c *Controller) TenantInfo() *sessions.TenantInfo {
	return c.store.Snapshot().TenantInfo
}

func (c *Controller) TenantSessionData() *sessions.TenantSession {
	return c.store.Snapshot().TenantSession
}

func (c *Controller) StationUser() *sessions.StationUser {
	return c.store.Snapshot().StationUser
}

// StationDisplayName is the selected station's name, or "" below
// LevelStation.
func (c *Controller) StationDisplayName() string {
	info := c.store.Snapshot().TenantInfo
	if info == nil {
		return ""
	}
	return info.SelectedStation.DisplayName()
}

// classify maps lower-layer errors onto result kinds.
func classify[T any](op string, err error) Result[T] {
	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		msg := rejected.Message
		if msg == "" {
			msg = http.StatusText(rejected.StatusCode)
		}
		return errWithCause[T](KindBackend, msg, err)
	case errors.Is(err, context.Canceled):
		return errWithCause[T](KindCanceled, op+" canceled", err)
	case errors.Is(err, interrors.ErrNoToken), errors.Is(err, interrors.ErrUnauthorized):
		return errWithCause[T](KindUnauthorized, "session expired, please sign in again", err)
	case errors.Is(err, interrors.ErrInvalidRequest):
		return errWithCause[T](KindValidation, err.Error(), err)
	default:
		return errWithCause[T](KindUnreachable, "cannot reach the server, try again", err)
	}
}
