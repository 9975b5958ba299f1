package token

import (
	"sync"
	"time"
)

// Revocations remembers revoked token ids until the token would have
// expired on its own.
type Revocations interface {
	Revoke(jti string, until time.Time)
	Revoked(jti string) bool
	// Prune drops entries past their expiry and returns how many remain.
	Prune(now time.Time) int
}

type revocationList struct {
	lock    sync.RWMutex
	entries map[string]time.Time
}

func NewRevocationList() Revocations {
	return &revocationList{entries: make(map[string]time.Time)}
}

func (l *revocationList) Revoke(jti string, until time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.entries[jti] = until
}

func (l *revocationList) Revoked(jti string) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	_, ok := l.entries[jti]
	return ok
}

func (l *revocationList) Prune(now time.Time) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	for jti, until := range l.entries {
		// Tokens without exp stay revoked.
		if !until.IsZero() && !now.Before(until) {
			delete(l.entries, jti)
		}
	}
	return len(l.entries)
}
