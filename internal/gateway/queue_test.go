package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

func TestQueueLanesRunInParallel(t *testing.T) {
	queue := NewQueue()
	queue.Start(context.Background())
	defer queue.Stop()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(3)
	queue.SetProcessor(func(ctx context.Context, turn *Turn) error {
		started.Done()
		<-release
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(NewTurn(types.ConversationID(fmt.Sprintf("conv-%d", i)), "hi")); err != nil {
			t.Fatal(err)
		}
	}

	waited := make(chan struct{})
	go func() { started.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("expected all lanes to start without waiting on each other")
	}
	close(release)
}

func TestQueueSameConversationOrdering(t *testing.T) {
	queue := NewQueue()
	queue.Start(context.Background())
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	var running, maxSeen int32
	done := make(chan struct{})

	queue.SetProcessor(func(ctx context.Context, turn *Turn) error {
		current := atomic.AddInt32(&running, 1)
		if current > atomic.LoadInt32(&maxSeen) {
			atomic.StoreInt32(&maxSeen, current)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)

		mu.Lock()
		order = append(order, turn.Text)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	for _, text := range []string{"0", "1", "2"} {
		if err := queue.Enqueue(NewTurn("same", text)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turns to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != fmt.Sprint(i) {
			t.Errorf("expected order[%d] = %d, got %s", i, i, v)
		}
	}
	if m := atomic.LoadInt32(&maxSeen); m != 1 {
		t.Errorf("expected turns of one conversation to run one at a time, saw %d", m)
	}
}

func TestQueueProcessorErrorDoesNotStopLane(t *testing.T) {
	queue := NewQueue()
	queue.Start(context.Background())
	defer queue.Stop()

	done := make(chan struct{})
	var calls int32
	queue.SetProcessor(func(ctx context.Context, turn *Turn) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			close(done)
		}
		return errors.New("boom")
	})

	queue.Enqueue(NewTurn("c", "a"))
	queue.Enqueue(NewTurn("c", "b"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected second turn to run after the first failed")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue()
	if err := queue.Enqueue(NewTurn("c", "a")); err == nil {
		t.Error("expected error enqueueing on a queue that was never started")
	}
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	queue := NewQueue()
	queue.Start(context.Background())
	queue.Stop()
	if err := queue.Enqueue(NewTurn("c", "a")); err == nil {
		t.Error("expected error enqueueing on a stopped queue")
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue()
	queue.Start(context.Background())
	defer queue.Stop()

	if err := queue.Enqueue(NewTurn("no-proc", "a")); err != nil {
		t.Fatal(err)
	}
	if !queue.WaitIdle(time.Second) {
		t.Error("expected queue to be idle")
	}
}
