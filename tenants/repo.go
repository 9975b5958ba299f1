package tenants

type Repo interface {
	Upsert(tenantData *Tenant) error
	Delete(maKhachHang string) error
	Get(maKhachHang string) (*Tenant, error)
	List(offset, limit int) ([]*Tenant, error)
}
