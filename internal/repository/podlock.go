package repository

import "sync"

// PodLocks hands out one mutex per pod id. Entries are dropped once no
// goroutine holds or waits on them.
type PodLocks struct {
	mu    sync.Mutex
	locks map[uint]*podLock
}

type podLock struct {
	sync.Mutex
	refs int
}

// NewPodLocks returns an empty lock table.
func NewPodLocks() *PodLocks {
	return &PodLocks{locks: make(map[uint]*podLock)}
}

// Lock blocks until the pod's mutex is held and returns its release func.
func (l *PodLocks) Lock(podID uint) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[podID]
	if !ok {
		pl = &podLock{}
		l.locks[podID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, podID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many pods currently have a lock entry.
func (l *PodLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
