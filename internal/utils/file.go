package utils

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileHash calculates the MD5 hash of a file's contents as a hex string.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// CopyFileAtomic copies src to dst through a temp file in dst's directory,
// fsyncs and renames it into place. The destination is either fully written
// or untouched, never a truncated copy. Returns the MD5 of the copied bytes.
func CopyFileAtomic(src, dst string) (string, error) {
	if err := EnsureParent(dst); err != nil {
		return "", fmt.Errorf("ensure parent: %w", err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	tempFile, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".mbx.tmp.*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	hasher := md5.New()
	if _, err := io.Copy(io.MultiWriter(tempFile, hasher), srcFile); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	// Sync to disk before rename to ensure durability
	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if info, err := os.Stat(src); err == nil {
		os.Chmod(tempPath, info.Mode().Perm())
	}

	// Atomic move into place
	if err := os.Rename(tempPath, dst); err != nil {
		return "", fmt.Errorf("rename temp file to %s: %w", dst, err)
	}

	success = true
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
