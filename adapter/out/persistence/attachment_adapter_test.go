package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystemBlobStoreWriteReadDelete(t *testing.T) {
	store := NewFilesystemBlobStore(t.TempDir())
	ctx := context.Background()

	if err := store.Write(ctx, "42/report.pdf", []byte("blob-data")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ok, err := store.Exists(ctx, "42/report.pdf")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected the written blob to exist")
	}

	data, err := store.Read(ctx, "42/report.pdf")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "blob-data" {
		t.Errorf("Read = %q, want %q", data, "blob-data")
	}

	if err := store.Delete(ctx, "42/report.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = store.Exists(ctx, "42/report.pdf")
	if err != nil {
		t.Fatalf("Exists after delete: %v", err)
	}
	if ok {
		t.Error("expected the blob to be gone after Delete")
	}
}

func TestFilesystemBlobStoreWriteCreatesIntermediateDirs(t *testing.T) {
	base := t.TempDir()
	store := NewFilesystemBlobStore(base)

	if err := store.Write(context.Background(), "a/b/c/file.bin", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "a", "b", "c", "file.bin")); err != nil {
		t.Errorf("expected nested directories to be created: %v", err)
	}
}

func TestFilesystemBlobStoreExistsFalseForMissingPath(t *testing.T) {
	store := NewFilesystemBlobStore(t.TempDir())

	ok, err := store.Exists(context.Background(), "missing/path.bin")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("expected Exists to report false for a path that was never written")
	}
}

func TestFilesystemBlobStoreReadMissingReturnsError(t *testing.T) {
	store := NewFilesystemBlobStore(t.TempDir())

	if _, err := store.Read(context.Background(), "missing/path.bin"); err == nil {
		t.Error("expected an error reading a blob that was never written")
	}
}
