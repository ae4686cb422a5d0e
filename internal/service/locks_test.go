package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionLocksSerializePerSession(t *testing.T) {
	locks := newSessionLocks()
	id := uuid.New()

	var wg sync.WaitGroup
	var inCritical, maxInCritical int
	var mu sync.Mutex

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire(id)
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "only one turn per session at a time")

	locks.mu.Lock()
	assert.Empty(t, locks.entries, "entries are reclaimed after release")
	locks.mu.Unlock()
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	releaseA := locks.acquire(uuid.New())
	done := make(chan struct{})
	go func() {
		release := locks.acquire(uuid.New())
		release()
		close(done)
	}()
	<-done // a different session must not block behind A
	releaseA()
}
