package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/fileutil"
)

func TestExistsNonEmpty(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.txt")
	if fileutil.ExistsNonEmpty(missing) {
		t.Fatal("missing file reported as non-empty")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if fileutil.ExistsNonEmpty(empty) {
		t.Fatal("empty file reported as non-empty")
	}

	full := filepath.Join(dir, "full.txt")
	if err := os.WriteFile(full, []byte("data"), 0o644); err != nil {
		t.Fatalf("write full: %v", err)
	}
	if !fileutil.ExistsNonEmpty(full) {
		t.Fatal("non-empty file reported as empty")
	}

	if fileutil.ExistsNonEmpty(dir) {
		t.Fatal("directory reported as non-empty file")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	payload := []byte("fake image bytes")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("copied content mismatch: %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "artifact.png")
	if err := fileutil.WriteFileAtomic(target, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if !fileutil.ExistsNonEmpty(target) {
		t.Fatal("expected target written")
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, found %d entries", len(entries))
	}
}
