// internal/state/file_test.go
package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(dir)
	ctx := context.Background()

	if err := backend.Put(ctx, "conversations", "c1", []byte("value")); err != nil {
		t.Fatal(err)
	}

	// No temp file left behind
	path := filepath.Join(dir, "stores", "conversations.json")
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not exist after successful write")
	}

	// A second instance sees the same data
	other := NewFileBackend(dir)
	got, err := other.Get(ctx, "conversations", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "value" {
		t.Errorf("expected 'value', got %q", got)
	}
}

func TestFileBackendRejectsPathStoreNames(t *testing.T) {
	backend := NewFileBackend(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", "..", "../escape", "a/b"} {
		if err := backend.Put(ctx, name, "k", []byte("v")); err == nil {
			t.Errorf("expected error for store name %q", name)
		}
	}
}
