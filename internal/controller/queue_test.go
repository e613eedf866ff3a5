package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/foliochat/internal/types"
)

func startQueue(t *testing.T, maxConcurrent int64) *Queue {
	t.Helper()
	q := NewQueue(maxConcurrent, nil)
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func TestQueueConcurrency(t *testing.T) {
	q := startQueue(t, 2)

	var running, maxSeen int32
	for i := 0; i < 5; i++ {
		err := q.Enqueue(&Effect{
			Lane: types.SessionID(fmt.Sprintf("session-%d", i)),
			Name: "sleep",
			Run: func(context.Context) error {
				current := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.WaitIdle(ctx))
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
	assert.Zero(t, q.Pending())
}

func TestQueueSameLaneOrdering(t *testing.T) {
	q := startQueue(t, 4)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		err := q.Enqueue(&Effect{
			Lane: "same-session",
			Run: func(context.Context) error {
				time.Sleep(time.Duration(3-i) * 5 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.WaitIdle(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestQueueReportsFailure(t *testing.T) {
	q := startQueue(t, 1)
	boom := errors.New("boom")
	got := make(chan error, 1)

	require.NoError(t, q.Enqueue(&Effect{
		Lane:    "s",
		Name:    "fail",
		Run:     func(context.Context) error { return boom },
		OnError: func(err error) { got <- err },
	}))

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnError")
	}
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(context.Background())
	q.Stop()
	q.Stop()

	err := q.Enqueue(&Effect{Lane: "s", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueReleasesIdleLanes(t *testing.T) {
	q := startQueue(t, 2)

	for round := 0; round < 2; round++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, q.Enqueue(&Effect{
				Lane: types.SessionID(fmt.Sprintf("session-%d", i)),
				Name: "noop",
				Run:  func(context.Context) error { return nil },
			}))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, q.WaitIdle(ctx))
		cancel()
		require.Eventually(t, func() bool { return q.Lanes() == 0 }, 2*time.Second, 5*time.Millisecond)
	}
}
