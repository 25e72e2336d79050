package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupManager_SnapshotExistingTarget(t *testing.T) {
	targetDir := t.TempDir()
	backupDir := t.TempDir()
	writeTree(t, targetDir, map[string]string{
		"app/main.py": "old contents",
	})

	bm := NewBackupManager(targetDir, backupDir, "pass1234")
	rec, err := bm.Snapshot("app/main.py")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected a backup record for an existing target")
	}

	if rec.RelPath != "app/main.py" {
		t.Errorf("RelPath = %q", rec.RelPath)
	}
	if !strings.HasPrefix(rec.BackupPath, backupDir) {
		t.Errorf("BackupPath %q not under backup dir", rec.BackupPath)
	}
	if !strings.Contains(rec.BackupPath, "pass1234") {
		t.Errorf("BackupPath %q not qualified by pass id", rec.BackupPath)
	}

	data, err := os.ReadFile(rec.BackupPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old contents" {
		t.Errorf("backup contents = %q", data)
	}
}

func TestBackupManager_NoopWhenTargetMissing(t *testing.T) {
	bm := NewBackupManager(t.TempDir(), t.TempDir(), "pass1234")

	rec, err := bm.Snapshot("app/new.py")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("expected nil record when there is nothing to protect")
	}
}

func TestBackupManager_UnwritableBackupDir(t *testing.T) {
	targetDir := t.TempDir()
	tmp := t.TempDir()
	writeTree(t, targetDir, map[string]string{"a.txt": "x"})

	// a regular file where the backup dir should be makes it unwritable
	// for any uid
	backupDir := filepath.Join(tmp, "backups")
	if err := os.WriteFile(backupDir, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	bm := NewBackupManager(targetDir, backupDir, "pass1234")
	_, err := bm.Snapshot("a.txt")
	if err == nil {
		t.Fatal("expected backup error")
	}
	if !errors.Is(err, ErrBackup) {
		t.Errorf("error %v should wrap ErrBackup", err)
	}
}

func TestBackupManager_ReadOnlyBackupDir(t *testing.T) {
	targetDir := t.TempDir()
	backupDir := t.TempDir()
	writeTree(t, targetDir, map[string]string{"a.txt": "x"})

	if err := os.Chmod(backupDir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(backupDir, 0o755) })

	bm := NewBackupManager(targetDir, backupDir, "pass1234")
	_, err := bm.Snapshot("a.txt")
	if err == nil {
		t.Fatal("expected backup error for a read-only backup dir")
	}
	if !errors.Is(err, ErrBackup) {
		t.Errorf("error %v should wrap ErrBackup", err)
	}
}
