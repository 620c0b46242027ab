package storage

import (
	"context"
	"testing"
)

func TestFileStoreWriteReadDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key := ArtifactKey("job-1", "front-eye-medium")
	saved, err := store.Write(ctx, key, []byte("artifact"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if saved != key {
		t.Fatalf("saved key = %q, want %q", saved, key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "artifact" {
		t.Fatalf("data = %q", data)
	}

	if err := store.Delete(ctx, "generated/job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, key); err == nil {
		t.Fatalf("expected read failure after delete")
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.png", []byte("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if _, err := store.Read(context.Background(), ""); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}
