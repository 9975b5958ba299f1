package tenantrepofakes

import (
	"errors"
	"sort"
	"sync"

	"github.com/jrsteele09/tramcan-session/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
}

func NewFakeTenantRepo() tenants.Repo {
	return &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
	}
}

func (tr *FakeTenantRepo) Upsert(tenantData *tenants.Tenant) error {
	if tenantData == nil || tenantData.MaKhachHang == "" {
		return errors.New("maKhachHang is required")
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	copied := *tenantData
	copied.Stations = tenantData.Stations.Clone()
	tr.tenants[tenantData.MaKhachHang] = &copied
	return nil
}

func (tr *FakeTenantRepo) Delete(maKhachHang string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	delete(tr.tenants, maKhachHang)
	return nil
}

func (tr *FakeTenantRepo) Get(maKhachHang string) (*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	tenant, ok := tr.tenants[maKhachHang]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *tenant
	copied.Stations = tenant.Stations.Clone()
	return &copied, nil
}

func (tr *FakeTenantRepo) List(offset, limit int) ([]*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		list = append(list, t)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].MaKhachHang < list[j].MaKhachHang
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}
