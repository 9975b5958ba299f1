package users

type UserRepo interface {
	Upsert(user *User) error
	GetByUsername(username string) (*User, error)
	GetByID(ID string) (*User, error)
}

type StationUserRepo interface {
	UpsertStationUser(user *StationUser) error
	GetStationUser(maKhachHang, nvID string) (*StationUser, error)
}
