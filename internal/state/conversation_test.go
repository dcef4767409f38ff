// internal/state/conversation_test.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/codec"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

func sampleConversation(id string, updated time.Time, content string) *types.StoredConversation {
	return &types.StoredConversation{
		ID:        types.ConversationID(id),
		UserID:    "u1",
		Namespace: "default",
		Messages: []agent.Message{
			{Role: agent.RoleUser, Content: content},
		},
		ToolCalls: []agent.ToolCall{{ID: "t1", Name: "list_pods", Arguments: map[string]any{"namespace": "default"}}},
		Outcome:   types.OutcomeResolved,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestConversationStoreSaveGetList(t *testing.T) {
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewConversationStore(backend, "", "")
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

			if err := store.Save(ctx, sampleConversation("older", base, "first")); err != nil {
				t.Fatal(err)
			}
			if err := store.Save(ctx, sampleConversation("newer", base.Add(time.Minute), "second")); err != nil {
				t.Fatal(err)
			}
			// Same id again: last write wins
			if err := store.Save(ctx, sampleConversation("older", base, "rewritten")); err != nil {
				t.Fatal(err)
			}

			got, err := store.Get(ctx, "older")
			if err != nil {
				t.Fatal(err)
			}
			if got.Messages[0].Content != "rewritten" {
				t.Errorf("expected rewritten content, got %q", got.Messages[0].Content)
			}
			if got.ToolCalls[0].Arguments["namespace"] != "default" {
				t.Errorf("expected tool arguments to survive, got %v", got.ToolCalls[0].Arguments)
			}
			if !got.UpdatedAt.Equal(base) {
				t.Errorf("expected UpdatedAt %v, got %v", base, got.UpdatedAt)
			}

			list, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 {
				t.Fatalf("expected 2 conversations, got %d", len(list))
			}
			if list[0].ID != "newer" || list[1].ID != "older" {
				t.Errorf("expected newest first, got %s, %s", list[0].ID, list[1].ID)
			}

			if err := store.Delete(ctx, "older"); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Get(ctx, "older"); !errors.Is(err, types.ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestConversationStoreListSkipsCorrupt(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewConversationStore(backend, "", "")
	ctx := context.Background()

	if err := store.Save(ctx, sampleConversation("good", time.Now(), "hi")); err != nil {
		t.Fatal(err)
	}
	backend.Put(ctx, store.Name(), "bad", []byte{0xff, 0x00})

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Errorf("expected only the decodable record, got %d", len(list))
	}
}

func TestSaveRejectsEmptyID(t *testing.T) {
	store := NewConversationStore(NewMemoryBackend(), "", "")
	if err := store.Save(context.Background(), &types.StoredConversation{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestMigrateLegacy(t *testing.T) {
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewConversationStore(backend, DefaultStoreName, LegacyStoreName)
			now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

			// Legacy store holds A and B; current already holds a newer B.
			for _, c := range []*types.StoredConversation{
				sampleConversation("A", now, "legacy A"),
				sampleConversation("B", now, "legacy B"),
			} {
				data, err := codec.Marshal(c)
				if err != nil {
					t.Fatal(err)
				}
				if err := backend.Put(ctx, LegacyStoreName, string(c.ID), data); err != nil {
					t.Fatal(err)
				}
			}
			if err := store.Save(ctx, sampleConversation("B", now.Add(time.Hour), "current B")); err != nil {
				t.Fatal(err)
			}

			store.MigrateLegacy(ctx)

			a, err := store.Get(ctx, "A")
			if err != nil {
				t.Fatalf("expected A to be migrated: %v", err)
			}
			if a.Messages[0].Content != "legacy A" {
				t.Errorf("unexpected A content %q", a.Messages[0].Content)
			}
			b, err := store.Get(ctx, "B")
			if err != nil {
				t.Fatal(err)
			}
			if b.Messages[0].Content != "current B" {
				t.Errorf("expected current B to be kept, got %q", b.Messages[0].Content)
			}

			before, err := backend.GetAll(ctx, DefaultStoreName)
			if err != nil {
				t.Fatal(err)
			}

			// Second call changes nothing.
			store.MigrateLegacy(ctx)
			after, err := backend.GetAll(ctx, DefaultStoreName)
			if err != nil {
				t.Fatal(err)
			}
			if len(before) != 2 || len(after) != 2 {
				t.Fatalf("expected 2 records before and after, got %d and %d", len(before), len(after))
			}
			for k, v := range before {
				if string(after[k]) != string(v) {
					t.Errorf("record %s changed on second migration", k)
				}
			}

			legacy, err := backend.GetAll(ctx, LegacyStoreName)
			if err != nil {
				t.Fatal(err)
			}
			if len(legacy) != 2 {
				t.Errorf("expected legacy store untouched, got %d records", len(legacy))
			}
		})
	}
}

func TestPlanMigration(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	cborA, _ := codec.Marshal(sampleConversation("A", now, "a"))
	jsonC, _ := json.Marshal(sampleConversation("", now, "c"))

	legacy := map[string][]byte{
		"A":       cborA,
		"B":       []byte("whatever"),
		"C":       jsonC,
		"corrupt": {0xff, 0xfe},
	}
	current := map[string][]byte{"B": []byte("existing")}

	writes := PlanMigration(legacy, current)
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if writes[0].Key != "A" || writes[1].Key != "C" {
		t.Errorf("expected writes for A and C in key order, got %s, %s", writes[0].Key, writes[1].Key)
	}

	var c types.StoredConversation
	if err := codec.Unmarshal(writes[1].Value, &c); err != nil {
		t.Fatalf("expected JSON legacy record to be re-encoded: %v", err)
	}
	if c.ID != "C" || c.Messages[0].Content != "c" {
		t.Errorf("unexpected migrated record: %+v", c)
	}

	current["A"] = writes[0].Value
	current["C"] = writes[1].Value
	if again := PlanMigration(legacy, current); len(again) != 0 {
		t.Errorf("expected no writes on second plan, got %d", len(again))
	}
}

func TestMigrateLegacyCamelCaseJSON(t *testing.T) {
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := `{
				"id": "c1",
				"userId": "u1",
				"tenantId": "t1",
				"cluster": "prod",
				"namespace": "monitoring",
				"scopeId": "s1",
				"workspaceId": "w1",
				"messages": [{"role": "user", "content": "why is the pod pending?"}],
				"toolCalls": [{"id": "t1", "name": "describe_pod", "arguments": {"name": "web-0"}}],
				"toolResults": [{"toolCallId": "t1", "result": "Insufficient cpu"}],
				"outcome": "resolved",
				"createdAt": "2024-01-01T00:00:00Z",
				"updatedAt": "2024-01-02T00:00:00Z"
			}`
			if err := backend.Put(ctx, LegacyStoreName, "c1", []byte(record)); err != nil {
				t.Fatal(err)
			}

			store := NewConversationStore(backend, DefaultStoreName, LegacyStoreName)
			store.MigrateLegacy(ctx)

			c, err := store.Get(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if c.UserID != "u1" || c.TenantID != "t1" || c.ScopeID != "s1" || c.WorkspaceID != "w1" {
				t.Errorf("expected identity and scope fields migrated, got %+v", c)
			}
			if c.Cluster != "prod" || c.Namespace != "monitoring" {
				t.Errorf("unexpected scoping: %q %q", c.Cluster, c.Namespace)
			}
			if len(c.ToolCalls) != 1 || c.ToolCalls[0].Name != "describe_pod" {
				t.Errorf("expected tool calls migrated, got %+v", c.ToolCalls)
			}
			if len(c.ToolResults) != 1 || c.ToolResults[0].ToolCallID != "t1" {
				t.Errorf("expected tool results migrated, got %+v", c.ToolResults)
			}
			if !c.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected createdAt %v", c.CreatedAt)
			}
			if !c.UpdatedAt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected updatedAt %v", c.UpdatedAt)
			}
			if len(c.Messages) != 1 || c.Outcome != types.OutcomeResolved {
				t.Errorf("unexpected messages or outcome: %+v", c)
			}
		})
	}
}

// saveDuringMigration saves a conversation right after the current store
// has been read, before the migration writes.
type saveDuringMigration struct {
	*MemoryBackend
	once  bool
	after func()
}

func (b *saveDuringMigration) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	all, err := b.MemoryBackend.GetAll(ctx, store)
	if store == DefaultStoreName && !b.once {
		b.once = true
		b.after()
	}
	return all, err
}

func TestMigrateLegacyDoesNotOverwriteConcurrentSave(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	backend := &saveDuringMigration{MemoryBackend: NewMemoryBackend()}
	store := NewConversationStore(backend, DefaultStoreName, LegacyStoreName)

	legacy, err := codec.Marshal(sampleConversation("A", now, "legacy A"))
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Put(ctx, LegacyStoreName, "A", legacy); err != nil {
		t.Fatal(err)
	}
	backend.after = func() {
		if err := store.Save(ctx, sampleConversation("A", now.Add(time.Hour), "current A")); err != nil {
			t.Error(err)
		}
	}

	store.MigrateLegacy(ctx)

	a, err := store.Get(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if a.Messages[0].Content != "current A" {
		t.Errorf("expected the concurrent save to win, got %q", a.Messages[0].Content)
	}
}

func TestMigrateLegacyMissingStoreIsQuiet(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewConversationStore(backend, "", LegacyStoreName)
	store.MigrateLegacy(context.Background())

	all, _ := backend.GetAll(context.Background(), store.Name())
	if len(all) != 0 {
		t.Errorf("expected nothing migrated, got %d", len(all))
	}
}
