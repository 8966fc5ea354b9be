package cycle

import (
	"context"
	"sync"
	"time"
)

// vehicleLocks serialises requests for the same vehicle within one process.
// Each vehicle gets its own one-slot semaphore, so distinct vehicles never
// contend. Entries are dropped once nobody holds or waits on them.
type vehicleLocks struct {
	mu      sync.Mutex
	entries map[uint]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{entries: make(map[uint]*lockEntry)}
}

// acquire waits at most timeout for the vehicle's lock. It returns a release
// func on success, ErrLockTimeout when the wait expires, or the context error.
func (l *vehicleLocks) acquire(ctx context.Context, vehicleID uint, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[vehicleID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[vehicleID] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.unref(vehicleID, e)
		}, nil
	case <-timer.C:
		l.unref(vehicleID, e)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.unref(vehicleID, e)
		return nil, ctx.Err()
	}
}

func (l *vehicleLocks) unref(vehicleID uint, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, vehicleID)
	}
	l.mu.Unlock()
}

// size returns the number of vehicles with a holder or waiter.
func (l *vehicleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
