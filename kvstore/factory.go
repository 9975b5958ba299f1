package kvstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/tramcan-session/internal/config"
	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/kvstore/sqlitekv"
	"github.com/pkg/errors"
)

var _ Store = (*sqlitekv.Store)(nil)

// Open builds the store selected by cfg, sealed when a secret is configured.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var store Store
	switch cfg.GetStoreDriver() {
	case config.StoreDriverSQLite:
		s, err := sqlitekv.Open(ctx, cfg.GetStoreFile())
		if err != nil {
			return nil, errors.Wrap(err, "[kvstore.Open] sqlite")
		}
		store = s
	case config.StoreDriverMemory:
		store = NewMemoryStore()
	default:
		s, err := NewFileStore(cfg.GetStoreFile())
		if err != nil {
			return nil, errors.Wrap(err, "[kvstore.Open] file")
		}
		store = s
	}

	if secret := cfg.GetStoreSecret(); secret != "" {
		return &closingSealed{SealedStore: Sealed(store, secret), inner: store}, nil
	}
	return store, nil
}

// Close releases store resources when the backend holds any.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

type closingSealed struct {
	*SealedStore
	inner Store
}

func (c *closingSealed) Close() error {
	return Close(c.inner)
}

// MemoryStore is a process-local Store. Values do not survive a restart.
type MemoryStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", interrors.ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys, nil
}
