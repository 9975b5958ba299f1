package users

import (
	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user role at a station
type RoleType string

const (
	RoleStationAdmin RoleType = "quan_ly"  // Station manager, can void and edit tickets
	RoleOperator     RoleType = "can_vien" // Weighbridge operator, creates tickets
	RoleViewer       RoleType = "xem"      // Read-only access
)

// User is an account of the generic resource API (the auth_token flow).
type User struct {
	ID           string   `json:"id,omitempty"`
	Username     string   `json:"username,omitempty"`
	PasswordHash string   `json:"-"` // never serialize
	FullName     string   `json:"fullName,omitempty"`
	Role         RoleType `json:"role,omitempty"`
	Blocked      bool     `json:"blocked,omitempty"`
}

// StationUser is a staff account (nhân viên) that signs in at a kiosk
// station after the tenant has selected it.
type StationUser struct {
	NvID         string   `json:"nvId"`
	TenNhanVien  string   `json:"tenNhanVien"`
	VaiTro       RoleType `json:"vaiTro"`
	PasswordHash string   `json:"-"`
	MaKhachHang  string   `json:"maKhachHang"`
	StationIDs   []int64  `json:"stationIds"` // Stations this user may operate
	Blocked      bool     `json:"blocked,omitempty"`
}

// CanOperate reports whether the user is assigned to stationID.
func (u *StationUser) CanOperate(stationID int64) bool {
	for _, id := range u.StationIDs {
		if id == stationID {
			return true
		}
	}
	return false
}

// HashPassword uses bcrypt.MinCost; hashes only ever back the fake backend.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
