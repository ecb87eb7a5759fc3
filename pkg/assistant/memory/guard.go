package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Guard serializes writers of one session. Unlock must be called exactly once.
type Guard interface {
	Lock(ctx context.Context, sessionID uuid.UUID) (unlock func(), err error)
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// LocalGuard is an in-process keyed mutex. Entries are dropped once nobody holds or waits on them.
type LocalGuard struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLock
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{locks: make(map[uuid.UUID]*keyedLock)}
}

func (g *LocalGuard) Lock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[sessionID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		g.locks[sessionID] = l
	}
	l.refs++
	g.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		g.release(sessionID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			g.release(sessionID, l)
		})
	}, nil
}

func (g *LocalGuard) release(sessionID uuid.UUID, l *keyedLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, sessionID)
	}
}

func (g *LocalGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
