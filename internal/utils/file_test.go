package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileHash(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	// md5("hello")
	if hash != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("FileHash = %q, want md5 of 'hello'", hash)
	}

	if _, err := FileHash(filepath.Join(tmp, "missing")); err == nil {
		t.Error("FileHash on missing file should error")
	}
}

func TestCopyFileAtomic(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	dst := filepath.Join(tmp, "deep", "nested", "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := CopyFileAtomic(src, dst)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("dst contents = %q, want %q", data, "payload")
	}

	wantHash, err := FileHash(src)
	if err != nil {
		t.Fatal(err)
	}
	if hash != wantHash {
		t.Errorf("returned hash %q does not match source hash %q", hash, wantHash)
	}

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only dst in dir, got %d entries", len(entries))
	}
}

func TestCopyFileAtomic_MissingSource(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "dst.txt")

	if _, err := CopyFileAtomic(filepath.Join(tmp, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if FileExists(dst) {
		t.Error("dst should not exist after failed copy")
	}
}
