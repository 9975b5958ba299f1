package kvstorefake

import (
	"context"
	"sync"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/jrsteele09/tramcan-session/kvstore"
)

var _ kvstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory kvstore.Store with failure injection for tests.
type FakeStore struct {
	values map[string]string
	lock   sync.RWMutex

	failSet    map[string]error
	failRemove map[string]error
	failGet    error
	writes     []string
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values:     make(map[string]string),
		failSet:    make(map[string]error),
		failRemove: make(map[string]error),
	}
}

// FailSet makes every Set of key return err until cleared with a nil err.
func (fs *FakeStore) FailSet(key string, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err == nil {
		delete(fs.failSet, key)
		return
	}
	fs.failSet[key] = err
}

// FailRemove makes every Remove of key return err.
func (fs *FakeStore) FailRemove(key string, err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err == nil {
		delete(fs.failRemove, key)
		return
	}
	fs.failRemove[key] = err
}

// FailGet makes every Get and Keys call return err.
func (fs *FakeStore) FailGet(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.failGet = err
}

// Put sets a raw value, bypassing failure injection.
func (fs *FakeStore) Put(key, value string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[key] = value
}

// Snapshot returns a copy of every stored value.
func (fs *FakeStore) Snapshot() map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	out := make(map[string]string, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}

// Writes returns the keys passed to successful Set calls, in order.
func (fs *FakeStore) Writes() []string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return append([]string(nil), fs.writes...)
}

func (fs *FakeStore) Get(ctx context.Context, key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.failGet != nil {
		return "", fs.failGet
	}
	v, ok := fs.values[key]
	if !ok {
		return "", interrors.ErrKeyNotFound
	}
	return v, nil
}

func (fs *FakeStore) Set(ctx context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err, ok := fs.failSet[key]; ok {
		return err
	}
	fs.values[key] = value
	fs.writes = append(fs.writes, key)
	return nil
}

func (fs *FakeStore) Remove(ctx context.Context, key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err, ok := fs.failRemove[key]; ok {
		return err
	}
	delete(fs.values, key)
	return nil
}

func (fs *FakeStore) Keys(ctx context.Context) ([]string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.failGet != nil {
		return nil, fs.failGet
	}
	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	return keys, nil
}
