// internal/state/eventlog_test.go
package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

func TestEventLog(t *testing.T) {
	dir := t.TempDir()
	log := NewEventLog(dir)
	ctx := context.Background()

	conversationID := types.NewConversationID()

	event1 := &types.Event{
		ID:             types.NewEventID(),
		ConversationID: conversationID,
		Seq:            0, // Will be auto-assigned
		Type:           "text",
		At:             time.Now(),
		Payload:        json.RawMessage(`{"type":"text","text":"hello"}`),
	}
	if err := log.Append(ctx, event1); err != nil {
		t.Fatal(err)
	}

	events, err := log.Tail(ctx, conversationID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Seq != 1 {
		t.Errorf("expected seq 1, got %d", events[0].Seq)
	}

	count, err := log.Count(ctx, conversationID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	empty, err := log.Tail(ctx, types.NewConversationID(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no events for unknown conversation, got %d", len(empty))
	}
}

func TestEventLogSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	id := types.NewConversationID()

	log := NewEventLog(dir)
	const n = 200
	for i := 0; i < n; i++ {
		ev := &types.Event{ID: types.NewEventID(), ConversationID: id, Type: "text_delta", At: time.Now(), Payload: json.RawMessage(`{}`)}
		if err := log.Append(ctx, ev); err != nil {
			t.Fatal(err)
		}
		if ev.Seq != int64(i+1) {
			t.Fatalf("append %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
	}

	events, err := log.Tail(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events, got %d", n, len(events))
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Fatalf("line %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
	}

	// A fresh log over the same directory continues the sequence.
	reopened := NewEventLog(dir)
	count, err := reopened.Count(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if count != n {
		t.Errorf("expected count %d, got %d", n, count)
	}
	ev := &types.Event{ID: types.NewEventID(), ConversationID: id, Type: "complete", At: time.Now(), Payload: json.RawMessage(`{}`)}
	if err := reopened.Append(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if ev.Seq != n+1 {
		t.Errorf("expected seq %d after reopen, got %d", n+1, ev.Seq)
	}
}

func TestEventLogConcurrentAppend(t *testing.T) {
	log := NewEventLog(t.TempDir())
	ctx := context.Background()
	id := types.NewConversationID()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ev := &types.Event{ID: types.NewEventID(), ConversationID: id, Type: "text_delta", At: time.Now(), Payload: json.RawMessage(`{}`)}
				if err := log.Append(ctx, ev); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	events, err := log.Tail(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 200 {
		t.Fatalf("expected 200 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Fatalf("line %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
	}
}

func TestEventLogRecorder(t *testing.T) {
	log := NewEventLog(t.TempDir())
	ctx := context.Background()

	first := types.NewConversationID()
	second := types.NewConversationID()
	current := first
	record := log.Recorder(func() types.ConversationID { return current })

	ev, err := agent.ParseEvent([]byte(`{"id":"e1","type":"text","text":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	record(ev)
	record(agent.Event{ID: "e2", Kind: agent.KindComplete, Payload: agent.TurnSummary{ToolCalls: 1}})
	current = second
	record(ev)

	events, err := log.Tail(ctx, first, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "text" || events[0].SourceID != "e1" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if string(events[0].Payload) != `{"id":"e1","type":"text","text":"hi"}` {
		t.Errorf("expected raw record as payload, got %s", events[0].Payload)
	}
	if events[1].Seq != 2 || events[1].Type != "complete" {
		t.Errorf("unexpected second event: %+v", events[1])
	}

	count, err := log.Count(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 event for second conversation, got %d", count)
	}
}
