package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/pkg/errors"
)

const (
	fileExt  = ".kv"
	tempGlob = ".tmp-*"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

// FileStore keeps one file per key inside a directory. Writes go to a temp
// file that is fsynced and renamed over the target, so a crash leaves
// either the old or the new value on disk.
type FileStore struct {
	dir  string
	lock sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir (0700) when missing and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("[NewFileStore] directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] MkdirAll")
	}
	// Leftovers from an interrupted write are never valid values.
	if stale, err := filepath.Glob(filepath.Join(dir, tempGlob)); err == nil {
		for _, f := range stale {
			_ = os.Remove(f)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Wrapf(interrors.ErrInvalidRequest, "invalid key %q", key)
	}
	return filepath.Join(fs.dir, key+fileExt), nil
}

func (fs *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := fs.path(key)
	if err != nil {
		return "", err
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", interrors.ErrKeyNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[FileStore.Get] ReadFile")
	}
	return string(b), nil
}

func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	tmp, err := os.CreateTemp(fs.dir, tempGlob)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] CreateTemp")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "[FileStore.Set] Write")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "[FileStore.Set] Sync")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore.Set] Close")
	}
	if err := os.Rename(tmpName, p); err != nil {
		return errors.Wrap(err, "[FileStore.Set] Rename")
	}
	return nil
}

func (fs *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Remove] Remove")
	}
	return nil
}

func (fs *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Keys] ReadDir")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	return keys, nil
}
