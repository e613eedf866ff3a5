package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/user/foliochat/internal/types"
)

// ErrQueueStopped is returned by Enqueue after Stop.
var ErrQueueStopped = errors.New("effect queue stopped")

const laneBuffer = 100

// Effect is one backend call scheduled after an optimistic store update.
type Effect struct {
	// Lane orders effects: effects with the same lane run one at a time in
	// enqueue order.
	Lane types.SessionID
	Name string
	Run  func(ctx context.Context) error
	// OnError runs on the lane goroutine when Run fails.
	OnError func(error)
}

// Queue runs effects on per-session lanes with a global concurrency limit.
// Each lane is a FIFO channel drained by its own goroutine, so effects for
// one session are sequential while the semaphore bounds parallelism across
// sessions. Lanes exist only while they have work.
type Queue struct {
	lanes     map[types.SessionID]chan *Effect
	semaphore *semaphore.Weighted
	pending   atomic.Int64
	logger    *zap.Logger
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue that runs up to maxConcurrent effects at once.
func NewQueue(maxConcurrent int64, logger *zap.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Effect),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels running effects, closes all lanes and waits for the lane
// goroutines to exit. Queued effects that have not started are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
	}
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds e to its lane, creating the lane on first use.
func (q *Queue) Enqueue(e *Effect) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || q.ctx == nil {
		return ErrQueueStopped
	}

	lane, exists := q.lanes[e.Lane]
	if !exists {
		lane = make(chan *Effect, laneBuffer)
		q.lanes[e.Lane] = lane
		q.wg.Add(1)
		go q.processLane(e.Lane, lane)
	}

	q.pending.Add(1)
	select {
	case lane <- e:
		return nil
	default:
		q.pending.Add(-1)
		return fmt.Errorf("effect queue full for session %s", e.Lane)
	}
}

// processLane drains one lane and removes it once it is empty. A later
// effect for the same session starts a new lane.
func (q *Queue) processLane(id types.SessionID, lane chan *Effect) {
	defer q.wg.Done()
	for {
		select {
		case e, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.pending.Add(-1)
				break
			}
			q.run(e)
			q.semaphore.Release(1)
			q.pending.Add(-1)
		case <-q.ctx.Done():
			return
		}

		q.mu.Lock()
		if len(lane) == 0 {
			delete(q.lanes, id)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

func (q *Queue) run(e *Effect) {
	err := e.Run(q.ctx)
	if err == nil {
		return
	}
	q.logger.Error("effect failed",
		zap.String("effect", e.Name),
		zap.String("session_id", string(e.Lane)),
		zap.Error(err))
	if e.OnError != nil {
		e.OnError(err)
	}
}

// Lanes returns the number of lanes with queued or running effects.
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Pending returns the number of effects queued or running.
func (q *Queue) Pending() int64 {
	return q.pending.Load()
}

// WaitIdle blocks until no effects are queued or running, or ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
