package backendfake

import (
	"github.com/jrsteele09/tramcan-session/internal/utils"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/jrsteele09/tramcan-session/users"
	"github.com/pkg/errors"
)

type SeedTenant struct {
	MaKhachHang  string
	TenKhachHang string
	Password     string
	Stations     tenants.Stations
}

type SeedStationUser struct {
	MaKhachHang string
	NvID        string
	TenNhanVien string
	Password    string
	VaiTro      users.RoleType
	StationIDs  []int64
}

type SeedUser struct {
	Username string
	Password string
	FullName string
	Role     users.RoleType
}

type SeedData struct {
	Tenants      []SeedTenant
	StationUsers []SeedStationUser
	Users        []SeedUser
}

// DemoData is the data set the dev backend starts with.
func DemoData() SeedData {
	return SeedData{
		Tenants: []SeedTenant{
			{
				MaKhachHang: "KH001", TenKhachHang: "Cong ty Van tai Minh Phat", Password: "secret",
				Stations: tenants.Stations{
					{ID: 7, MaTramCan: "TC07", TenTramCan: "Tram can Cat Lai", DiaChi: "Cang Cat Lai, TP.HCM", TrangThai: utils.Ptr("hoat_dong")},
					{ID: 8, MaTramCan: "TC08", TenTramCan: "Tram can Song Than", DiaChi: "KCN Song Than, Binh Duong", TrangThai: utils.Ptr("hoat_dong"), MoTa: utils.Ptr("Ca dem")},
				},
			},
			{
				MaKhachHang: "KH002", TenKhachHang: "HTX Vat lieu Xay dung Thanh Cong", Password: "secret2",
				Stations: tenants.Stations{
					{ID: 21, MaTramCan: "TC21", TenTramCan: "Tram can Long Binh", DiaChi: "Bien Hoa, Dong Nai"},
				},
			},
		},
		StationUsers: []SeedStationUser{
			{MaKhachHang: "KH001", NvID: "NV01", TenNhanVien: "Nguyen Van An", Password: "123456", VaiTro: users.RoleStationAdmin, StationIDs: []int64{7, 8}},
			{MaKhachHang: "KH001", NvID: "NV02", TenNhanVien: "Tran Thi Binh", Password: "123456", VaiTro: users.RoleOperator, StationIDs: []int64{7}},
		},
		Users: []SeedUser{
			{Username: "admin", Password: "admin123", FullName: "Quan tri he thong", Role: users.RoleStationAdmin},
		},
	}
}

// Seed loads data into the server's repos, hashing every password.
func (s *Server) Seed(data SeedData) error {
	for _, t := range data.Tenants {
		hash, err := users.HashPassword(t.Password)
		if err != nil {
			return errors.Wrap(err, "[Seed] hash tenant password")
		}
		err = s.tenants.Upsert(&tenants.Tenant{
			Customer:     tenants.Customer{MaKhachHang: t.MaKhachHang, TenKhachHang: t.TenKhachHang},
			PasswordHash: hash,
			Stations:     t.Stations,
		})
		if err != nil {
			return errors.Wrapf(err, "[Seed] tenant %s", t.MaKhachHang)
		}
	}

	for _, su := range data.StationUsers {
		hash, err := users.HashPassword(su.Password)
		if err != nil {
			return errors.Wrap(err, "[Seed] hash station user password")
		}
		err = s.stationUsers.UpsertStationUser(&users.StationUser{
			NvID:         su.NvID,
			TenNhanVien:  su.TenNhanVien,
			VaiTro:       su.VaiTro,
			PasswordHash: hash,
			MaKhachHang:  su.MaKhachHang,
			StationIDs:   su.StationIDs,
		})
		if err != nil {
			return errors.Wrapf(err, "[Seed] station user %s", su.NvID)
		}
	}

	for _, u := range data.Users {
		hash, err := users.HashPassword(u.Password)
		if err != nil {
			return errors.Wrap(err, "[Seed] hash user password")
		}
		err = s.users.Upsert(&users.User{
			Username: u.Username, PasswordHash: hash, FullName: u.FullName, Role: u.Role,
		})
		if err != nil {
			return errors.Wrapf(err, "[Seed] user %s", u.Username)
		}
	}

	s.logger.Info().Int("tenants", len(data.Tenants)).Int("station_users", len(data.StationUsers)).
		Int("users", len(data.Users)).Msg("seeded")
	return nil
}
