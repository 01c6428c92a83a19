package memory

import (
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/page.html", "text/html", payload)
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://path/page.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored := string(store.data["path/page.html"])
	if stored != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestBlobStoreObjectAndPaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.PutObject(context.Background(), "", "text/html", []byte("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := store.PutObject(context.Background(), "a.html", "text/html", []byte("a")); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, ok := store.Object("a.html")
	if !ok || string(got) != "a" {
		t.Fatalf("unexpected object %q ok=%v", got, ok)
	}
	if _, ok := store.Object("missing.html"); ok {
		t.Fatal("expected missing object")
	}
	if paths := store.Paths(); len(paths) != 1 || paths[0] != "a.html" {
		t.Fatalf("unexpected paths %v", paths)
	}
}
