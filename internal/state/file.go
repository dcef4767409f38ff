// internal/state/file.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

// FileBackend is a JSON-file-backed key-value store.
// Each named store lives in stores/<name>.json under the root directory
// and is rewritten atomically on every change.
type FileBackend struct {
	root string
	mu   sync.RWMutex
}

// NewFileBackend creates a new file-backed store rooted at the given directory.
func NewFileBackend(root string) *FileBackend {
	return &FileBackend{root: root}
}

func (f *FileBackend) storesDir() string {
	return filepath.Join(f.root, "stores")
}

func (f *FileBackend) storePath(store string) (string, error) {
	if store == "" || store == "." || store == ".." || strings.ContainsAny(store, `/\`) {
		return "", fmt.Errorf("invalid store name: %q", store)
	}
	return filepath.Join(f.storesDir(), store+".json"), nil
}

// load reads a store file. A missing file is an empty store.
func (f *FileBackend) load(store string) (map[string][]byte, error) {
	path, err := f.storePath(store)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]byte), nil
		}
		return nil, fmt.Errorf("read store %s: %w", store, err)
	}

	entries := make(map[string][]byte)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal store %s: %w", store, err)
	}
	return entries, nil
}

// save marshals with indentation and writes atomically.
func (f *FileBackend) save(store string, entries map[string][]byte) error {
	path, err := f.storePath(store)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store %s: %w", store, err)
	}

	if err := os.MkdirAll(f.storesDir(), 0o755); err != nil {
		return fmt.Errorf("create stores dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp store: %w", err)
	}
	return nil
}

// GetAll returns every key and value of store.
func (f *FileBackend) GetAll(_ context.Context, store string) (map[string][]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.load(store)
}

// Get returns the value under key, or types.ErrNotFound.
func (f *FileBackend) Get(_ context.Context, store, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := f.load(store)
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", store, key, types.ErrNotFound)
	}
	return value, nil
}

// Put writes value under key, replacing any previous value.
func (f *FileBackend) Put(ctx context.Context, store, key string, value []byte) error {
	return f.PutAll(ctx, store, map[string][]byte{key: value})
}

// PutAll writes all entries with a single file rewrite.
func (f *FileBackend) PutAll(_ context.Context, store string, entries map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load(store)
	if err != nil {
		return err
	}
	for k, v := range entries {
		current[k] = append([]byte(nil), v...)
	}
	return f.save(store, current)
}

// PutAbsent writes the entries whose keys are not yet present and reports
// how many were written. The file is rewritten only when something changed.
func (f *FileBackend) PutAbsent(_ context.Context, store string, entries map[string][]byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load(store)
	if err != nil {
		return 0, err
	}
	n := 0
	for k, v := range entries {
		if _, exists := current[k]; exists {
			continue
		}
		current[k] = append([]byte(nil), v...)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := f.save(store, current); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (f *FileBackend) Delete(_ context.Context, store, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load(store)
	if err != nil {
		return err
	}
	if _, ok := current[key]; !ok {
		return nil
	}
	delete(current, key)
	return f.save(store, current)
}

func (f *FileBackend) Close() error { return nil }
