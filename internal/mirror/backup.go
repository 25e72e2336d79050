package mirror

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// BackupManager snapshots target files into a per-pass directory before the
// engine overwrites them. Layout mirrors source-relative paths under
// <backupDir>/<stamp>-<passID>/ so repeated passes never collide. It only
// ever creates files, never deletes.
type BackupManager struct {
	targetDir  string
	backupRoot string
	passDir    string
}

func NewBackupManager(targetDir, backupDir, passID string) *BackupManager {
	stamp := time.Now().Format("20060102T150405")
	return &BackupManager{
		targetDir:  targetDir,
		backupRoot: backupDir,
		passDir:    filepath.Join(backupDir, fmt.Sprintf("%s-%s", stamp, passID)),
	}
}

// Snapshot copies the current target file for relPath into the backup
// directory. Returns a nil record when the target does not exist yet,
// since there is nothing to protect. The copy is atomic: a backup is
// either fully written or not created at all.
func (b *BackupManager) Snapshot(relPath string) (*BackupRecord, error) {
	targetPath := filepath.Join(b.targetDir, filepath.FromSlash(relPath))
	if !utils.FileExists(targetPath) {
		return nil, nil
	}

	if utils.DirExists(b.backupRoot) && !utils.IsWritable(b.backupRoot) {
		return nil, fmt.Errorf("%w: backup dir not writable: %s", ErrBackup, b.backupRoot)
	}

	backupPath := filepath.Join(b.passDir, filepath.FromSlash(relPath))
	if _, err := utils.CopyFileAtomic(targetPath, backupPath); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %w", ErrBackup, relPath, err)
	}

	return &BackupRecord{
		RelPath:    relPath,
		BackupPath: backupPath,
		Timestamp:  time.Now(),
	}, nil
}
