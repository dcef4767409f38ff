// internal/state/backend.go
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// OpenBackend opens the backend of the given kind under dataDir.
// An empty kind selects SQLite.
func OpenBackend(kind, dataDir string) (types.Backend, error) {
	switch kind {
	case "", BackendSQLite:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return OpenSQLite(filepath.Join(dataDir, "conversations.db"), 0)
	case BackendFile:
		return NewFileBackend(dataDir), nil
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", kind)
	}
}
