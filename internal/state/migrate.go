// internal/state/migrate.go
package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/codec"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// Write is a single planned store write.
type Write struct {
	Key   string
	Value []byte
}

// absentWriter is implemented by backends that can insert many entries
// atomically without replacing existing keys.
type absentWriter interface {
	PutAbsent(ctx context.Context, store string, entries map[string][]byte) (int, error)
}

// PlanMigration computes the writes that copy legacy records into the
// current store. Keys already present in current are left untouched, so
// planning again after a migration yields nothing. Legacy values may be
// CBOR or JSON; both are re-encoded as CBOR. Entries that decode as
// neither are skipped. The result is ordered by key.
func PlanMigration(legacy, current map[string][]byte) []Write {
	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		if _, exists := current[k]; !exists {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	writes := make([]Write, 0, len(keys))
	for _, key := range keys {
		conv, ok := decodeLegacy(legacy[key])
		if !ok {
			slog.Warn("skipping undecodable legacy conversation", "key", key)
			continue
		}
		if conv.ID == "" {
			conv.ID = types.ConversationID(key)
		}
		data, err := codec.Marshal(conv)
		if err != nil {
			slog.Warn("skipping legacy conversation", "key", key, "error", err)
			continue
		}
		writes = append(writes, Write{Key: key, Value: data})
	}
	return writes
}

func decodeLegacy(data []byte) (*types.StoredConversation, bool) {
	var conv types.StoredConversation
	if err := codec.Unmarshal(data, &conv); err == nil {
		return &conv, true
	}
	conv = types.StoredConversation{}
	if err := json.Unmarshal(data, &conv); err == nil {
		return &conv, true
	}
	return nil, false
}

// MigrateLegacy copies conversations from the legacy store into the current
// one. It is best effort: failures are logged, never returned, and the
// legacy store is only read. Calling it again is harmless.
func (s *ConversationStore) MigrateLegacy(ctx context.Context) {
	if s.legacyName == "" || s.legacyName == s.name {
		return
	}

	legacy, err := s.backend.GetAll(ctx, s.legacyName)
	if err != nil {
		slog.Warn("read legacy conversation store", "store", s.legacyName, "error", err)
		return
	}
	if len(legacy) == 0 {
		return
	}

	current, err := s.backend.GetAll(ctx, s.name)
	if err != nil {
		slog.Warn("read conversation store", "store", s.name, "error", err)
		return
	}

	writes := PlanMigration(legacy, current)
	if len(writes) == 0 {
		slog.Debug("legacy conversations already migrated", "store", s.legacyName)
		return
	}

	// A Save may land between the read above and the write below; the
	// insert must not replace it.
	if aw, ok := s.backend.(absentWriter); ok {
		entries := make(map[string][]byte, len(writes))
		for _, w := range writes {
			entries[w.Key] = w.Value
		}
		n, err := aw.PutAbsent(ctx, s.name, entries)
		if err != nil {
			slog.Warn("migrate legacy conversations", "store", s.legacyName, "error", err)
			return
		}
		slog.Info("migrated legacy conversations", "from", s.legacyName, "to", s.name, "count", n)
		return
	}

	migrated := 0
	for _, w := range writes {
		if _, err := s.backend.Get(ctx, s.name, w.Key); err == nil {
			continue
		}
		if err := s.backend.Put(ctx, s.name, w.Key, w.Value); err != nil {
			slog.Warn("migrate legacy conversation", "key", w.Key, "error", err)
			continue
		}
		migrated++
	}
	slog.Info("migrated legacy conversations", "from", s.legacyName, "to", s.name, "count", migrated)
}
