package service

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes interview turns per session id while keeping
// sessions fully concurrent with each other. Entries are reference-counted
// so the map does not grow with every session ever seen.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: map[uuid.UUID]*lockEntry{}}
}

// acquire blocks until the session's lock is held and returns the release
// function.
func (l *sessionLocks) acquire(id uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
