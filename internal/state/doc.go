// Package state provides the conversation store, its key-value backends,
// and the per-conversation event log.
package state

import "github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*ConversationStore)(nil)
var _ types.EventStore = (*EventLog)(nil)
var _ types.Backend = (*SQLiteBackend)(nil)
var _ types.Backend = (*FileBackend)(nil)
var _ types.Backend = (*MemoryBackend)(nil)
var _ absentWriter = (*SQLiteBackend)(nil)
var _ absentWriter = (*FileBackend)(nil)
var _ absentWriter = (*MemoryBackend)(nil)
