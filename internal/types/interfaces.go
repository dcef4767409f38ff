// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups of absent keys.
var ErrNotFound = errors.New("not found")

// Backend is an embedded key-value store partitioned into named stores.
type Backend interface {
	GetAll(ctx context.Context, store string) (map[string][]byte, error)
	Get(ctx context.Context, store, key string) ([]byte, error)
	Put(ctx context.Context, store, key string, value []byte) error
	Delete(ctx context.Context, store, key string) error
	Close() error
}

type ConversationStore interface {
	Save(ctx context.Context, conv *StoredConversation) error
	Get(ctx context.Context, id ConversationID) (*StoredConversation, error)
	List(ctx context.Context) ([]*StoredConversation, error)
	Delete(ctx context.Context, id ConversationID) error
}

type EventStore interface {
	Append(ctx context.Context, event *Event) error
	Tail(ctx context.Context, conversationID ConversationID, limit int) ([]*Event, error)
	Count(ctx context.Context, conversationID ConversationID) (int64, error)
}
