package sessions

import (
	"context"
	"sync"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the single owner of persisted session state. It keeps an
// in-memory copy that token lookups read on every request; disk is written
// before memory, so memory never runs ahead of what a restart would load.
type Store struct {
	kv     kvstore.Store
	logger zerolog.Logger

	lock sync.RWMutex
	snap Snapshot

	// authLock orders every write of auth_token.
	authLock sync.Mutex
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore returns a Store over kv. Call LoadOnStartup before use.
func NewStore(kv kvstore.Store, options ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.New("[NewStore] key-value store is required")
	}
	s := &Store{
		kv:     kv,
		logger: log.Logger,
		snap:   Snapshot{Level: LevelNone},
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session_store").Logger()
	return s, nil
}

// LoadOnStartup reads every persisted key and derives the level:
// a valid tenant_info gives LevelStation, else a session token gives
// LevelTenant, else LevelNone. Unreadable or malformed keys count as
// absent; this never fails.
func (s *Store) LoadOnStartup(ctx context.Context) Snapshot {
	snap := s.load(ctx)

	s.lock.Lock()
	s.snap = snap
	s.lock.Unlock()

	s.logger.Info().Str("level", string(snap.Level)).
		Bool("generic_token", snap.AuthToken != "").
		Bool("station_user", snap.StationUser != nil).
		Msg("session restored")
	return snap.clone()
}

func (s *Store) load(ctx context.Context) Snapshot {
	snap := Snapshot{Level: LevelNone}

	sessionToken := s.readString(ctx, KeySessionToken)
	snap.AuthToken = s.readString(ctx, KeyAuthToken)

	var profile UserProfile
	if s.readBlob(ctx, KeyUserInfo, &profile) {
		snap.User = &profile
	}

	var record tenantInfoRecord
	if s.readBlob(ctx, KeyTenantInfo, &record) {
		if err := record.TenantInfo.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("key", KeyTenantInfo).Msg("ignoring structurally invalid blob")
		} else {
			info := record.TenantInfo
			snap.Level = LevelStation
			snap.TenantInfo = &info
			// The record is written first, so its token is the newest.
			snap.SessionToken = sessionToken
			if record.SessionToken != "" {
				snap.SessionToken = record.SessionToken
			}

			var su StationUser
			if s.readBlob(ctx, KeyStationUser, &su) && su.Token != "" && su.StationID == info.SelectedStation.ID {
				snap.StationUser = &su
			}
			return snap
		}
	}

	var ts TenantSession
	if s.readBlob(ctx, KeyTenantSession, &ts) && ts.SessionToken != "" {
		snap.Level = LevelTenant
		snap.SessionToken = ts.SessionToken
		snap.TenantSession = &ts
		return snap
	}

	if sessionToken != "" {
		snap.Level = LevelTenant
		snap.SessionToken = sessionToken
		snap.TenantSession = &TenantSession{SessionToken: sessionToken}
	}
	return snap
}

func (s *Store) readString(ctx context.Context, key string) string {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if !interrors.Is(err, interrors.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("treating unreadable key as absent")
		}
		return ""
	}
	return v
}

func (s *Store) readBlob(ctx context.Context, key string, out any) bool {
	raw := s.readString(ctx, key)
	if raw == "" {
		return false
	}
	version, err := decodeBlob(raw, out)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("treating malformed blob as absent")
		return false
	}
	if version < SchemaVersion {
		s.logger.Debug().Str("key", key).Int("version", version).Msg("legacy blob, upgraded on next write")
	}
	return true
}

func (s *Store) writeBlob(ctx context.Context, key string, v any) error {
	raw, err := encodeBlob(v)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return errors.Wrapf(err, "[Store] set %s", key)
	}
	return nil
}

// Snapshot returns a copy of the in-memory state.
func (s *Store) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.clone()
}

func (s *Store) update(fn func(*Snapshot)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	fn(&s.snap)
}

// SaveTenantSession persists a tenant login and moves memory to LevelTenant.
func (s *Store) SaveTenantSession(ctx context.Context, ts TenantSession) error {
	if ts.SessionToken == "" {
		return errors.Wrap(interrors.ErrInvalidRequest, "[SaveTenantSession] empty session token")
	}
	if err := s.writeBlob(ctx, KeyTenantSession, ts); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeySessionToken, ts.SessionToken); err != nil {
		// tenant_session already carries the token; load prefers it.
		s.logger.Warn().Err(err).Str("key", KeySessionToken).Msg("session token key not updated")
	}

	stored := ts
	stored.TramCans = ts.TramCans.Clone()
	s.update(func(snap *Snapshot) {
		snap.Level = LevelTenant
		snap.SessionToken = ts.SessionToken
		snap.TenantSession = &stored
		snap.TenantInfo = nil
		snap.StationUser = nil
	})
	return nil
}

// SaveTenantInfo persists the selected station together with the session
// token that scopes it. When it returns nil, both disk and memory hold the
// new scope. When it fails, neither has changed.
//
// The persisted session token is the one embedded in tenant_info; the
// session_token key is a mirror. A failed mirror write is logged and does
// not fail the save, since LoadOnStartup restores the embedded token.
func (s *Store) SaveTenantInfo(ctx context.Context, info TenantInfo, sessionToken string) error {
	if err := info.Validate(); err != nil {
		return errors.Wrap(interrors.ErrInvalidRequest, err.Error())
	}
	if sessionToken == "" {
		return errors.Wrap(interrors.ErrInvalidRequest, "[SaveTenantInfo] empty session token")
	}

	if err := s.writeBlob(ctx, KeyTenantInfo, tenantInfoRecord{TenantInfo: info, SessionToken: sessionToken}); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeySessionToken, sessionToken); err != nil {
		s.logger.Warn().Err(err).Str("key", KeySessionToken).Msg("session token key not updated, tenant_info is authoritative")
	}
	if err := s.kv.Remove(ctx, KeyTenantSession); err != nil {
		s.logger.Warn().Err(err).Str("key", KeyTenantSession).Msg("stale tenant session left behind")
	}

	s.update(func(snap *Snapshot) {
		snap.Level = LevelStation
		snap.SessionToken = sessionToken
		snap.TenantInfo = &info
		snap.TenantSession = nil
		if snap.StationUser != nil && snap.StationUser.StationID != info.SelectedStation.ID {
			snap.StationUser = nil
		}
	})
	return nil
}

// SaveStationUser attaches a station user session. Requires LevelStation.
func (s *Store) SaveStationUser(ctx context.Context, su StationUser) error {
	if su.Token == "" || su.NvID == "" {
		return errors.Wrap(interrors.ErrInvalidRequest, "[SaveStationUser] nvId and token are required")
	}
	if err := s.writeBlob(ctx, KeyStationUser, su); err != nil {
		return err
	}
	s.update(func(snap *Snapshot) {
		user := su
		snap.StationUser = &user
	})
	return nil
}

// ClearStationUser drops the station user session. Memory is cleared even
// if the key cannot be removed; a stale blob for another station is
// ignored on load.
func (s *Store) ClearStationUser(ctx context.Context) error {
	s.update(func(snap *Snapshot) {
		snap.StationUser = nil
	})
	if err := s.kv.Remove(ctx, KeyStationUser); err != nil {
		return errors.Wrap(err, "[ClearStationUser] remove")
	}
	return nil
}

// SaveGenericLogin persists the legacy single-token login.
func (s *Store) SaveGenericLogin(ctx context.Context, authToken string, profile UserProfile) error {
	if authToken == "" {
		return errors.Wrap(interrors.ErrInvalidRequest, "[SaveGenericLogin] empty token")
	}
	s.authLock.Lock()
	defer s.authLock.Unlock()
	if err := s.writeBlob(ctx, KeyUserInfo, profile); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyAuthToken, authToken); err != nil {
		return errors.Wrap(err, "[SaveGenericLogin] set auth token")
	}
	s.update(func(snap *Snapshot) {
		p := profile
		snap.AuthToken = authToken
		snap.User = &p
	})
	return nil
}

// ClearAuthToken drops the generic bearer token. Memory is cleared first
// so no further request can pick up the token even if removal fails.
func (s *Store) ClearAuthToken(ctx context.Context) error {
	s.authLock.Lock()
	defer s.authLock.Unlock()
	return s.clearAuthToken(ctx)
}

// ClearAuthTokenIf drops the generic bearer token only while it is still
// authToken. It reports whether anything was cleared, so a late 401 for a
// replaced token leaves the newer login alone.
func (s *Store) ClearAuthTokenIf(ctx context.Context, authToken string) (bool, error) {
	s.authLock.Lock()
	defer s.authLock.Unlock()
	if authToken == "" || s.AuthToken() != authToken {
		return false, nil
	}
	return true, s.clearAuthToken(ctx)
}

func (s *Store) clearAuthToken(ctx context.Context) error {
	s.update(func(snap *Snapshot) {
		snap.AuthToken = ""
	})
	if err := s.kv.Remove(ctx, KeyAuthToken); err != nil {
		return errors.Wrap(err, "[ClearAuthToken] remove")
	}
	return nil
}

// ClearGenericLogin drops the generic token and its user profile.
func (s *Store) ClearGenericLogin(ctx context.Context) error {
	tokenErr := s.ClearAuthToken(ctx)
	s.update(func(snap *Snapshot) {
		snap.User = nil
	})
	userErr := s.kv.Remove(ctx, KeyUserInfo)
	return interrors.Join(tokenErr, userErr)
}

// ClearAll removes every key and resets memory to LevelNone. Every key is
// attempted; the failures are returned joined.
func (s *Store) ClearAll(ctx context.Context) error {
	s.authLock.Lock()
	defer s.authLock.Unlock()
	s.update(func(snap *Snapshot) {
		*snap = Snapshot{Level: LevelNone}
	})

	seen := make(map[string]struct{}, len(allKeys))
	var errs []error
	for _, key := range allKeys {
		seen[key] = struct{}{}
		if err := s.kv.Remove(ctx, key); err != nil {
			errs = append(errs, errors.Wrapf(err, "remove %s", key))
		}
	}

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		errs = append(errs, errors.Wrap(err, "list keys"))
	}
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		if err := s.kv.Remove(ctx, key); err != nil {
			errs = append(errs, errors.Wrapf(err, "remove %s", key))
		}
	}
	return interrors.Join(errs...)
}

// SessionToken returns the live tenant/station session token.
func (s *Store) SessionToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.SessionToken
}

// AuthToken returns the live generic bearer token.
func (s *Store) AuthToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.AuthToken
}

// StationUserToken returns the station user's token, or "" when no user is
// signed in at the selected station.
func (s *Store) StationUserToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.snap.StationUser == nil {
		return ""
	}
	return s.snap.StationUser.Token
}

// Level returns the in-memory level.
func (s *Store) Level() Level {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.Level
}
