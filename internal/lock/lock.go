// Package lock serializes schedule generation per competition.
package lock

import (
	"context"
	"sync"
)

// Release gives up a held lock.
type Release func() error

// Locker hands out one exclusive lock per competition.
type Locker interface {
	// Lock blocks until the competition's lock is held or ctx is done.
	Lock(ctx context.Context, competitionID int64) (Release, error)
}

// Local is an in-process Locker. Entries are dropped once nobody holds or
// waits on them.
type Local struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[int64]*entry)}
}

func (l *Local) Lock(ctx context.Context, competitionID int64) (Release, error) {
	l.mu.Lock()
	e, ok := l.locks[competitionID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[competitionID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(competitionID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-e.sem
			l.drop(competitionID, e)
		})
		return nil
	}, nil
}

func (l *Local) drop(id int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
}

// held reports how many competitions currently have lock entries.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
