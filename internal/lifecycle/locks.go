package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockTable serializes lifecycle operations per resource ID. A lock is a
// lease: if the holder never finalizes (process crash mid-transition), the
// lease expires and the resource becomes operable again instead of being
// locked forever.
type lockTable struct {
	mu     sync.Mutex
	leases map[uuid.UUID]time.Time
}

func newLockTable() *lockTable {
	return &lockTable{leases: make(map[uuid.UUID]time.Time)}
}

// Acquire takes the lock for id with the given lease duration. Returns false
// if another unexpired lease holds it.
func (l *lockTable) Acquire(id uuid.UUID, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, held := l.leases[id]; held && time.Now().Before(expiry) {
		return false
	}
	l.leases[id] = time.Now().Add(ttl)
	return true
}

// Release frees the lock for id.
func (l *lockTable) Release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, id)
}

// Held reports whether id currently has an unexpired lease.
func (l *lockTable) Held(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, held := l.leases[id]
	return held && time.Now().Before(expiry)
}
