// internal/state/conversation.go
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/codec"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// Default store identifiers.
const (
	DefaultStoreName = "kubeagentix-conversations-v2"
	LegacyStoreName  = "kubeagentix-conversations"
)

// ConversationStore persists one StoredConversation per id in a named store
// of a Backend. Later saves of the same id overwrite earlier ones.
type ConversationStore struct {
	backend    types.Backend
	name       string
	legacyName string
}

// NewConversationStore creates a store over backend. An empty name selects
// DefaultStoreName; an empty legacyName disables migration.
func NewConversationStore(backend types.Backend, name, legacyName string) *ConversationStore {
	if name == "" {
		name = DefaultStoreName
	}
	return &ConversationStore{backend: backend, name: name, legacyName: legacyName}
}

// Name returns the current store identifier.
func (s *ConversationStore) Name() string { return s.name }

// Save upserts conv under its id.
func (s *ConversationStore) Save(ctx context.Context, conv *types.StoredConversation) error {
	if conv.ID == "" {
		return errors.New("save conversation: empty id")
	}
	data, err := codec.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := s.backend.Put(ctx, s.name, string(conv.ID), data); err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Get returns the conversation with the given id.
// The error wraps types.ErrNotFound when it does not exist.
func (s *ConversationStore) Get(ctx context.Context, id types.ConversationID) (*types.StoredConversation, error) {
	data, err := s.backend.Get(ctx, s.name, string(id))
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	var conv types.StoredConversation
	if err := codec.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Raw returns the encoded record for id.
func (s *ConversationStore) Raw(ctx context.Context, id types.ConversationID) ([]byte, error) {
	return s.backend.Get(ctx, s.name, string(id))
}

// List returns all conversations, most recently updated first.
// Records that cannot be decoded are logged and skipped.
func (s *ConversationStore) List(ctx context.Context) ([]*types.StoredConversation, error) {
	entries, err := s.backend.GetAll(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	convs := make([]*types.StoredConversation, 0, len(entries))
	for key, data := range entries {
		var conv types.StoredConversation
		if err := codec.Unmarshal(data, &conv); err != nil {
			slog.Warn("skipping undecodable conversation", "store", s.name, "key", key, "error", err)
			continue
		}
		convs = append(convs, &conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// Delete removes the conversation with the given id.
func (s *ConversationStore) Delete(ctx context.Context, id types.ConversationID) error {
	if err := s.backend.Delete(ctx, s.name, string(id)); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}
