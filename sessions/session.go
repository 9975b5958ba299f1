package sessions

import (
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/jrsteele09/tramcan-session/users"
)

// Level is the coarse session tier that decides which screen stack is shown.
// Exactly one level is active at a time.
type Level string

const (
	LevelNone    Level = "none"    // no session at all
	LevelTenant  Level = "tenant"  // tenant authenticated, no station chosen
	LevelStation Level = "station" // tenant authenticated and a station selected
)

// Persisted key names. No other package touches these.
const (
	KeyAuthToken     = "auth_token"     // generic resource API bearer token
	KeySessionToken  = "session_token"  // tenant/station session token for /tramcan/*
	KeyTenantInfo    = "tenant_info"    // TenantInfo + the token scoping it
	KeyUserInfo      = "user_info"      // generic login user profile
	KeyTenantSession = "tenant_session" // TenantSession while at LevelTenant
	KeyStationUser   = "station_user"   // station-level user session
)

var allKeys = []string{
	KeyTenantInfo,
	KeySessionToken,
	KeyTenantSession,
	KeyStationUser,
	KeyAuthToken,
	KeyUserInfo,
}

// TenantSession is the result of a tenant login.
type TenantSession struct {
	SessionToken string           `json:"sessionToken"`
	KhachHang    tenants.Customer `json:"khachHang"`
	TramCans     tenants.Stations `json:"tramCans"`
}

// TenantInfo is the durable station-level record.
type TenantInfo struct {
	KhachHang       tenants.Customer `json:"khachHang"`
	SelectedStation tenants.Station  `json:"selectedStation"`
}

// Validate reports whether info is structurally usable: a tenant identity
// together with a selected station.
func (info TenantInfo) Validate() error {
	if err := info.KhachHang.Validate(); err != nil {
		return err
	}
	return info.SelectedStation.Validate()
}

// StationUser is a staff account signed in at the selected station.
type StationUser struct {
	NvID        string         `json:"nvId"`
	TenNhanVien string         `json:"tenNhanVien"`
	VaiTro      users.RoleType `json:"vaiTro"`
	Token       string         `json:"token"`
	StationID   int64          `json:"stationId"`
}

// UserProfile is the user record of the generic login flow.
type UserProfile struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	FullName string         `json:"fullName,omitempty"`
	Role     users.RoleType `json:"role,omitempty"`
}

// Snapshot is a copy of everything the store holds in memory.
type Snapshot struct {
	Level         Level
	SessionToken  string
	TenantSession *TenantSession // set at LevelTenant
	TenantInfo    *TenantInfo    // set at LevelStation
	StationUser   *StationUser   // optional, only at LevelStation
	AuthToken     string
	User          *UserProfile
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.TenantSession != nil {
		ts := *s.TenantSession
		ts.TramCans = s.TenantSession.TramCans.Clone()
		out.TenantSession = &ts
	}
	if s.TenantInfo != nil {
		info := *s.TenantInfo
		out.TenantInfo = &info
	}
	if s.StationUser != nil {
		su := *s.StationUser
		out.StationUser = &su
	}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
