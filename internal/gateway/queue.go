package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// laneSize bounds the number of turns waiting on one conversation.
const laneSize = 100

// Queue keeps one FIFO lane per conversation. Turns within a conversation
// run one after another; lanes run in parallel. Bounding the number of
// open streams is left to the sessions' shared limiter.
type Queue struct {
	lanes     map[types.ConversationID]chan *Turn
	processor func(context.Context, *Turn) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{lanes: make(map[types.ConversationID]chan *Turn)}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// turns to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, lane := range q.lanes {
			close(lane)
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a turn to its conversation's lane, creating the lane (and
// its goroutine) on first use.
func (q *Queue) Enqueue(turn *Turn) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.ctx == nil {
		return errors.New("queue not running")
	}
	lane, exists := q.lanes[turn.ConversationID]
	if !exists {
		lane = make(chan *Turn, laneSize)
		q.lanes[turn.ConversationID] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- turn:
		return nil
	default:
		return fmt.Errorf("queue full for conversation %s", turn.ConversationID)
	}
}

func (q *Queue) processLane(lane chan *Turn) {
	defer q.wg.Done()
	for {
		select {
		case turn, ok := <-lane:
			if !ok {
				return
			}
			if q.ctx.Err() != nil {
				return
			}
			if q.processor == nil {
				continue
			}
			q.active.Add(1)
			if err := q.processor(q.ctx, turn); err != nil {
				slog.Error("turn failed", "turn_id", string(turn.ID), "conversation_id", string(turn.ConversationID), "error", err)
			}
			q.active.Add(-1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no turns are being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued turn.
func (q *Queue) SetProcessor(fn func(context.Context, *Turn) error) {
	q.processor = fn
}
