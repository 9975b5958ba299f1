package backend

import (
	"encoding/json"
	"fmt"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/jrsteele09/tramcan-session/users"
)

// Envelope is the shape of every backend reply. success=false is an
// ordinary outcome carrying a user-facing message.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Message: "ok", Data: &data}
}

func Fail(message string) Envelope[json.RawMessage] {
	return Envelope[json.RawMessage]{Success: false, Message: message}
}

// RejectedError is a success=false reply.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return interrors.ErrBackendRejected
}

type TenantLoginRequest struct {
	MaKhachHang string `json:"maKhachHang"`
	Password    string `json:"password"`
}

type TenantLoginData struct {
	SessionToken string           `json:"sessionToken"`
	KhachHang    tenants.Customer `json:"khachHang"`
	TramCans     tenants.Stations `json:"tramCans"`
}

type StationRequest struct {
	StationID int64 `json:"stationId"`
}

// StationScopeData is returned by select and switch. Select may omit the
// token, in which case the caller keeps the one it sent.
type StationScopeData struct {
	SessionToken    string           `json:"sessionToken,omitempty"`
	KhachHang       tenants.Customer `json:"khachHang"`
	SelectedStation tenants.Station  `json:"selectedStation"`
}

type StationUserLoginRequest struct {
	NvID     string `json:"nvId"`
	Password string `json:"password"`
}

type StationUserData struct {
	NvID        string         `json:"nvId"`
	TenNhanVien string         `json:"tenNhanVien"`
	VaiTro      users.RoleType `json:"vaiTro"`
	Token       string         `json:"token"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type User struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	FullName string         `json:"fullName,omitempty"`
	Role     users.RoleType `json:"role,omitempty"`
}

type LoginData struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ValidateData struct {
	Valid bool `json:"valid"`
}
