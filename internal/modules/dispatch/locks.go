package dispatch

import (
	"sync"

	"evconnect/internal/types"
)

// keyedMutex serializes work per service request. Entries are dropped when
// no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[types.ID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[types.ID]*keyedEntry{}}
}

func (k *keyedMutex) Lock(id types.ID) func() {
	k.mu.Lock()
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
