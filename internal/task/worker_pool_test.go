package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(setupTestLogger())
	defer pool.Stop()

	unit, err := pool.Submit(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, unit.Wait())
	assert.NoError(t, unit.Cause(), "an uninterrupted unit has no cancellation cause")

	boom := errors.New("boom")
	unit, err = pool.Submit(func(ctx context.Context) error { return boom })
	require.NoError(t, err)
	assert.ErrorIs(t, unit.Wait(), boom)
	assert.False(t, pool.Stopped(), "a failing unit must not stop the pool")
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	pool := NewWorkerPool(setupTestLogger())
	defer pool.Stop()

	unit, err := pool.Submit(func(ctx context.Context) error {
		panic("page decoder exploded")
	})
	require.NoError(t, err)

	err = unit.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "page decoder exploded")

	// The pool keeps running units after a panic
	unit, err = pool.Submit(func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, unit.Wait())
}

func TestWorkerPool_FailureDoesNotCancelSiblings(t *testing.T) {
	pool := NewWorkerPool(setupTestLogger())
	defer pool.Stop()

	release := make(chan struct{})
	sibling, err := pool.Submit(func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.NoError(t, err)

	failing, err := pool.Submit(func(ctx context.Context) error { panic("boom") })
	require.NoError(t, err)
	require.Error(t, failing.Wait())

	close(release)
	assert.NoError(t, sibling.Wait())
	assert.NoError(t, sibling.Cause())
}

func TestWorkerPool_Stop(t *testing.T) {
	pool := NewWorkerPool(setupTestLogger())

	started := make(chan struct{})
	unit, err := pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	waitFor(t, started, "unit to start")

	pool.Stop()
	pool.Stop() // idempotent

	assert.ErrorIs(t, unit.Wait(), context.Canceled)
	assert.ErrorIs(t, unit.Cause(), ErrPoolStopped)
	assert.True(t, pool.Stopped())

	_, err = pool.Submit(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolStopped)

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	waitFor(t, done, "pool to drain")
}

func TestUnit_Cancel(t *testing.T) {
	pool := NewWorkerPool(setupTestLogger())
	defer pool.Stop()

	started := make(chan struct{})
	unit, err := pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return context.Cause(ctx)
	})
	require.NoError(t, err)
	waitFor(t, started, "unit to start")

	unit.Cancel(ErrJobCancelled)

	select {
	case <-unit.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("unit did not return after Cancel")
	}
	assert.ErrorIs(t, unit.Err(), ErrJobCancelled)
	assert.ErrorIs(t, unit.Cause(), ErrJobCancelled)
	assert.False(t, pool.Stopped(), "cancelling one unit must not stop the pool")
}
