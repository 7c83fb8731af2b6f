package store

import (
	"sync"

	"github.com/celerix-dev/celerix-store/pkg/cmap"
)

// LockTable hands out one mutex per (persona, app). Entries are created
// on first use and kept for the life of the table.
type LockTable struct {
	m *cmap.Map[*sync.Mutex]
}

// NewLockTable returns an empty table.
func NewLockTable() *LockTable {
	return &LockTable{m: cmap.New[*sync.Mutex]()}
}

func lockKey(persona, app string) string {
	return persona + "\x00" + app
}

func (t *LockTable) get(key string) *sync.Mutex {
	return t.m.GetOrCreate(key, func() *sync.Mutex { return new(sync.Mutex) })
}

// Lock acquires the App's mutex and returns its release function.
func (t *LockTable) Lock(persona, app string) (unlock func()) {
	mu := t.get(lockKey(persona, app))
	mu.Lock()
	return mu.Unlock
}

// LockPair acquires two App mutexes in a global order so concurrent
// pairs never deadlock. The same App twice is locked once.
func (t *LockTable) LockPair(persona1, app1, persona2, app2 string) (unlock func()) {
	k1, k2 := lockKey(persona1, app1), lockKey(persona2, app2)
	if k1 == k2 {
		return t.Lock(persona1, app1)
	}
	if k2 < k1 {
		k1, k2 = k2, k1
	}
	m1, m2 := t.get(k1), t.get(k2)
	m1.Lock()
	m2.Lock()
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}

// Len returns the number of Apps that have been locked at least once.
func (t *LockTable) Len() int {
	return t.m.Count()
}
