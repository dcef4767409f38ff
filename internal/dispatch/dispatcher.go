// internal/dispatch/dispatcher.go
package dispatch

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// Observer receives every event dispatched while it is subscribed.
type Observer func(agent.Event)

type subscription struct {
	id uint64
	fn Observer
}

// Dispatcher fans events out to observers synchronously, in subscription
// order. The observer list is copy-on-write: a dispatch iterates the list
// as it was when the dispatch started, so observers may subscribe or
// unsubscribe from inside a callback.
type Dispatcher struct {
	mu     sync.Mutex
	subs   atomic.Pointer[[]subscription]
	nextID uint64
}

// New creates a dispatcher with no observers.
func New() *Dispatcher {
	d := &Dispatcher{}
	d.subs.Store(&[]subscription{})
	return d
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (d *Dispatcher) Subscribe(fn Observer) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	cur := *d.subs.Load()
	next := make([]subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, subscription{id: id, fn: fn})
	d.subs.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(id) })
	}
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := *d.subs.Load()
	next := make([]subscription, 0, len(cur))
	for _, s := range cur {
		if s.id != id {
			next = append(next, s)
		}
	}
	d.subs.Store(&next)
}

// Len returns the number of current observers.
func (d *Dispatcher) Len() int {
	return len(*d.subs.Load())
}

// Dispatch delivers ev to every observer in the snapshot taken at entry.
// A panicking observer is logged and skipped; the rest still run.
func (d *Dispatcher) Dispatch(ev agent.Event) {
	for _, s := range *d.subs.Load() {
		deliver(s.fn, ev)
	}
}

func deliver(fn Observer, ev agent.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("observer panicked", "event_kind", string(ev.Kind), "event_id", ev.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(ev)
}
