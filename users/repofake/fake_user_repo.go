package fakeuserrepo

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/tramcan-session/users"
)

var (
	_ users.UserRepo        = (*FakeUserRepo)(nil)
	_ users.StationUserRepo = (*FakeUserRepo)(nil)
)

type FakeUserRepo struct {
	users        map[string]*users.User
	usernameIDs  map[string]string // username to user id
	stationUsers map[string]*users.StationUser
	lock         sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:        make(map[string]*users.User),
		usernameIDs:  make(map[string]string),
		stationUsers: make(map[string]*users.StationUser),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.usernameIDs[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIDs[username]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return user, nil
}

func stationUserKey(maKhachHang, nvID string) string {
	return maKhachHang + "/" + nvID
}

func (ur *FakeUserRepo) UpsertStationUser(user *users.StationUser) error {
	if user.NvID == "" || user.MaKhachHang == "" {
		return errors.New("nvId and maKhachHang are required")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.stationUsers[stationUserKey(user.MaKhachHang, user.NvID)] = user
	return nil
}

func (ur *FakeUserRepo) GetStationUser(maKhachHang, nvID string) (*users.StationUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.stationUsers[stationUserKey(maKhachHang, nvID)]
	if !ok {
		return nil, errors.New("not found")
	}
	return user, nil
}
