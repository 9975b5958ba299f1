package kvstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"sync"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltKey  = "__seal_salt"
	saltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 2
)

// SealedStore encrypts every value with XChaCha20-Poly1305 before handing
// it to the wrapped store. The key name is bound as additional data, so a
// blob copied under a different key fails to open.
type SealedStore struct {
	inner      Store
	passphrase []byte

	lock sync.Mutex
	aead cipher.AEAD
}

var _ Store = (*SealedStore)(nil)

// Sealed wraps inner. The argon2id key is derived lazily on first use from
// passphrase and a random salt kept in the inner store.
func Sealed(inner Store, passphrase string) *SealedStore {
	return &SealedStore{inner: inner, passphrase: []byte(passphrase)}
}

func (s *SealedStore) init(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.aead != nil {
		return nil
	}

	salt, err := s.loadSalt(ctx)
	if err != nil {
		return err
	}
	key := argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errors.Wrap(err, "[SealedStore] NewX")
	}
	s.aead = aead
	return nil
}

func (s *SealedStore) loadSalt(ctx context.Context) ([]byte, error) {
	encoded, err := s.inner.Get(ctx, saltKey)
	if err == nil {
		salt, decErr := base64.RawStdEncoding.DecodeString(encoded)
		if decErr == nil && len(salt) == saltSize {
			return salt, nil
		}
	} else if !interrors.Is(err, interrors.ErrKeyNotFound) {
		return nil, errors.Wrap(err, "[SealedStore] get salt")
	}

	// A missing or damaged salt means no sealed value is readable anyway.
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "[SealedStore] rand.Read")
	}
	if err := s.inner.Set(ctx, saltKey, base64.RawStdEncoding.EncodeToString(salt)); err != nil {
		return nil, errors.Wrap(err, "[SealedStore] set salt")
	}
	return salt, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, error) {
	if err := s.init(ctx); err != nil {
		return "", err
	}
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", errors.Wrapf(interrors.ErrSealFailed, "key %q", key)
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", errors.Wrapf(interrors.ErrSealFailed, "key %q", key)
	}
	return string(plain), nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	if key == saltKey {
		return errors.Wrapf(interrors.ErrInvalidRequest, "reserved key %q", key)
	}
	if err := s.init(ctx); err != nil {
		return err
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[SealedStore.Set] rand.Read")
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.RawStdEncoding.EncodeToString(out))
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	if key == saltKey {
		return nil
	}
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.inner.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k != saltKey {
			out = append(out, k)
		}
	}
	return out, nil
}
