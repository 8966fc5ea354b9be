package cycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleLocks_AcquireRelease(t *testing.T) {
	l := newVehicleLocks()
	release, err := l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, l.size())
	release()
	assert.Equal(t, 0, l.size(), "entry dropped after release")

	release, err = l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)
	release()
}

func TestVehicleLocks_TimeoutIsBounded(t *testing.T) {
	l := newVehicleLocks()
	release, err := l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = l.acquire(context.Background(), 7, 30*time.Millisecond)
	assert.True(t, errors.Is(err, ErrLockTimeout), "err = %v", err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, l.size(), "timed-out waiter leaves no entry behind")
}

func TestVehicleLocks_DistinctVehiclesDoNotContend(t *testing.T) {
	l := newVehicleLocks()
	r7, err := l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)
	defer r7()

	r8, err := l.acquire(context.Background(), 8, 10*time.Millisecond)
	require.NoError(t, err, "vehicle 8 must not wait on vehicle 7")
	r8()
}

func TestVehicleLocks_ContextCancel(t *testing.T) {
	l := newVehicleLocks()
	release, err := l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.acquire(ctx, 7, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVehicleLocks_WaiterGetsLockAfterRelease(t *testing.T) {
	l := newVehicleLocks()
	release, err := l.acquire(context.Background(), 7, time.Second)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		r, err := l.acquire(context.Background(), 7, time.Second)
		if err == nil {
			r()
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	release()
	require.NoError(t, <-done)
}
