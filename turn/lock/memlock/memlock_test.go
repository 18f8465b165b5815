package memlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/turn/lock/memlock"
)

func TestAcquireSerializesSameUser(t *testing.T) {
	l := memlock.New()
	release, err := l.Acquire(context.Background(), "u1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release2, err := l.Acquire(context.Background(), "u1")
		require.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire for the same user returned before the first released")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireDifferentUsersDoNotBlock(t *testing.T) {
	l := memlock.New()
	release1, err := l.Acquire(context.Background(), "u1")
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2, err := l.Acquire(context.Background(), "u2")
		require.NoError(t, err)
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire for a different user blocked on the first user's lock")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := memlock.New()
	_, err := l.Acquire(context.Background(), "u1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
