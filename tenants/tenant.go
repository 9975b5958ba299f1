package tenants

import "github.com/pkg/errors"

// Customer is the tenant identity (khách hàng) owning one or more stations.
type Customer struct {
	MaKhachHang  string `json:"maKhachHang"`  // Tenant code used to sign in, e.g. "KH001"
	TenKhachHang string `json:"tenKhachHang"` // Display name
}

// Validate checks the identity fields a session cannot work without.
func (c Customer) Validate() error {
	if c.MaKhachHang == "" {
		return errors.New("customer: empty maKhachHang")
	}
	return nil
}

// Station is a physical weighbridge site (trạm cân). It is an immutable
// snapshot from the backend and only ever replaced wholesale.
type Station struct {
	ID         int64   `json:"id"`
	MaTramCan  string  `json:"maTramCan"`
	TenTramCan string  `json:"tenTramCan"`
	DiaChi     string  `json:"diaChi"`
	TrangThai  *string `json:"trangThai,omitempty"`
	MoTa       *string `json:"moTa,omitempty"`
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID <= 0 {
		return errors.New("station: id must be positive")
	}
	return nil
}

// DisplayName prefers the station name and falls back to its code.
func (s Station) DisplayName() string {
	if s.TenTramCan != "" {
		return s.TenTramCan
	}
	return s.MaTramCan
}

// Stations is the station list returned for a tenant.
type Stations []Station

// Find returns the station with id, if present.
func (ss Stations) Find(id int64) (Station, bool) {
	for _, s := range ss {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

// Contains reports whether id is one of the listed stations.
func (ss Stations) Contains(id int64) bool {
	_, ok := ss.Find(id)
	return ok
}

// Clone returns a copy that shares no backing array with ss.
func (ss Stations) Clone() Stations {
	if ss == nil {
		return nil
	}
	return append(Stations(nil), ss...)
}

// Tenant is the backend-side record of a customer account.
type Tenant struct {
	Customer
	PasswordHash string   `json:"-"`
	Stations     Stations `json:"tramCans"`
	Blocked      bool     `json:"blocked,omitempty"`
}
