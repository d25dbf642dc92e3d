package service

import "sync"

// FamilyLocks is a keyed mutex giving each family a single writer.
// Entries are dropped once no goroutine holds or waits for them.
type FamilyLocks struct {
	mu    sync.Mutex
	locks map[int64]*familyLock
}

type familyLock struct {
	mu   sync.Mutex
	refs int
}

// NewFamilyLocks creates an empty lock table
func NewFamilyLocks() *FamilyLocks {
	return &FamilyLocks{locks: make(map[int64]*familyLock)}
}

// Lock blocks until the caller is the only writer for familyID and
// returns the function that releases it.
func (l *FamilyLocks) Lock(familyID int64) func() {
	l.mu.Lock()
	fl, ok := l.locks[familyID]
	if !ok {
		fl = &familyLock{}
		l.locks[familyID] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			fl.mu.Unlock()
			l.mu.Lock()
			fl.refs--
			if fl.refs == 0 {
				delete(l.locks, familyID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *FamilyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
