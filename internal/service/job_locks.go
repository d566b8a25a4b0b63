package service

import (
	"sync"

	"github.com/google/uuid"
)

// jobLocks serializes the mutations of one job record inside the process.
type jobLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*jobLock
}

type jobLock struct {
	sync.Mutex
	refs int
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[uuid.UUID]*jobLock)}
}

// Lock blocks until the caller owns the job and returns the function releasing it.
func (l *jobLocks) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	lock, found := l.locks[id]
	if !found {
		lock = &jobLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *jobLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
