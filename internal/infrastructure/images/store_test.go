package images

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveReturnsPublicPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, "/images")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rel, err := store.Save([]byte("payload"), "jpg")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(rel, "/images/") || !strings.HasSuffix(rel, ".jpg") {
		t.Fatalf("unexpected public path: %s", rel)
	}

	onDisk := filepath.Join(dir, filepath.Base(rel))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestSaveUniqueNames(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir(), "/images")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	first, _ := store.Save([]byte("a"), "")
	second, _ := store.Save([]byte("b"), "")
	if first == second {
		t.Fatalf("expected distinct names, got %s twice", first)
	}
	if !strings.HasSuffix(first, ".jpg") {
		t.Fatalf("default extension not applied: %s", first)
	}
}
