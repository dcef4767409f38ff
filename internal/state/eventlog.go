// internal/state/eventlog.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

// EventLog is an append-only JSONL log of turn events, one file per
// conversation at events/<conversationID>.jsonl. Sequence numbers start at 1
// and continue across restarts.
type EventLog struct {
	root  string
	mu    sync.Mutex
	convs map[types.ConversationID]*convLog
}

// convLog serializes access to one conversation's file. next is the Seq the
// following Append assigns; it is read from the file once.
type convLog struct {
	mu     sync.Mutex
	next   int64
	seeded bool
}

// NewEventLog creates a file-backed EventLog rooted at root.
func NewEventLog(root string) *EventLog {
	return &EventLog{
		root:  root,
		convs: make(map[types.ConversationID]*convLog),
	}
}

func (e *EventLog) conv(id types.ConversationID) *convLog {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.convs[id]; ok {
		return c
	}
	c := &convLog{}
	e.convs[id] = c
	return c
}

func (e *EventLog) eventsPath(id types.ConversationID) string {
	return filepath.Join(e.root, "events", filepath.Base(string(id))+".jsonl")
}

// seed loads the line count of id's file into c. Caller must hold c.mu.
func (e *EventLog) seed(id types.ConversationID, c *convLog) error {
	if c.seeded {
		return nil
	}
	n, err := e.countLines(id)
	if err != nil {
		return err
	}
	c.next = n + 1
	c.seeded = true
	return nil
}

func (e *EventLog) countLines(id types.ConversationID) (int64, error) {
	f, err := os.Open(e.eventsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan events file: %w", err)
	}
	return count, nil
}

// Append adds event to its conversation's log and sets event.Seq.
func (e *EventLog) Append(_ context.Context, event *types.Event) error {
	c := e.conv(event.ConversationID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.eventsPath(event.ConversationID)), 0o755); err != nil {
		return fmt.Errorf("create events dir: %w", err)
	}
	if err := e.seed(event.ConversationID, c); err != nil {
		return err
	}
	event.Seq = c.next

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(e.eventsPath(event.ConversationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	c.next++
	return nil
}

// Tail returns the last N events for the given conversation.
func (e *EventLog) Tail(_ context.Context, id types.ConversationID, limit int) ([]*types.Event, error) {
	c := e.conv(id)
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(e.eventsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}

// Count returns the number of events for the given conversation.
func (e *EventLog) Count(_ context.Context, id types.ConversationID) (int64, error) {
	c := e.conv(id)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := e.seed(id, c); err != nil {
		return 0, err
	}
	return c.next - 1, nil
}

// Recorder returns an observer that appends every event to the log of the
// conversation reported by current at the time the event arrives.
// Append failures are logged.
func (e *EventLog) Recorder(current func() types.ConversationID) func(agent.Event) {
	return func(ev agent.Event) {
		payload := ev.Raw
		if len(payload) == 0 {
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				slog.Warn("marshal event payload", "kind", string(ev.Kind), "error", err)
				return
			}
			payload = data
		}
		at := ev.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		id := current()
		err := e.Append(context.Background(), &types.Event{
			ID:             types.NewEventID(),
			ConversationID: id,
			Type:           string(ev.Kind),
			SourceID:       ev.ID,
			At:             at,
			Payload:        payload,
		})
		if err != nil {
			slog.Warn("append event log", "conversation_id", string(id), "error", err)
		}
	}
}
