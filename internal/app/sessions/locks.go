package sessions

import (
	"sync"

	"github.com/dkeye/CineMatch/internal/domain"
)

// keyedMutex hands out one mutex per join code and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.JoinCode]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.JoinCode]*keyedLock)}
}

// Lock blocks until code is free and returns the matching unlock.
func (k *keyedMutex) Lock(code domain.JoinCode) func() {
	k.mu.Lock()
	l, ok := k.locks[code]
	if !ok {
		l = &keyedLock{}
		k.locks[code] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, code)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
