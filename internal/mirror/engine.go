package mirror

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// Engine copies the resolved source files into the target tree, snapshotting
// pre-existing targets first. Per-file failures are isolated: one bad file
// never aborts the pass. It writes to the target tree and the backup
// directory and never deletes from either.
type Engine struct {
	ws         *Workspace
	autoBackup bool
}

func NewEngine(ws *Workspace, autoBackup bool) *Engine {
	return &Engine{
		ws:         ws,
		autoBackup: autoBackup,
	}
}

// Run executes one sync pass over a scanned file set. Files are processed
// in the scan's lexicographic order so output is reproducible. With dryRun
// the identical plan is computed without touching the filesystem.
// Cancellation is observed between per-file operations.
func (e *Engine) Run(ctx context.Context, scan []FileMeta, force, dryRun bool) (*Result, error) {
	res := &Result{
		PassID:    uuid.NewString()[:8],
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}

	var backup *BackupManager
	if e.autoBackup {
		backup = NewBackupManager(e.ws.TargetDir, e.ws.BackupDir, res.PassID)
	}

	for _, meta := range scan {
		if err := ctx.Err(); err != nil {
			res.FinishedAt = time.Now()
			return res, err
		}

		targetPath := filepath.Join(e.ws.TargetDir, filepath.FromSlash(meta.RelPath))

		if !force && utils.FileExists(targetPath) {
			targetETag, err := utils.FileHash(targetPath)
			if err == nil && targetETag == meta.ETag {
				res.Skipped = append(res.Skipped, meta.RelPath)
				continue
			}
		}

		if dryRun {
			res.Copied = append(res.Copied, meta.RelPath)
			res.BytesCopied += meta.Size
			continue
		}

		if backup != nil {
			rec, err := backup.Snapshot(meta.RelPath)
			if err != nil {
				slog.Warn("backup failed", "path", meta.RelPath, "error", err)
				res.Failures = append(res.Failures, Failure{Path: meta.RelPath, Op: "backup", Err: err})
				continue
			}
			if rec != nil {
				res.Backups = append(res.Backups, *rec)
			}
		}

		sourcePath := filepath.Join(e.ws.SourceDir, filepath.FromSlash(meta.RelPath))
		if _, err := utils.CopyFileAtomic(sourcePath, targetPath); err != nil {
			slog.Warn("copy failed", "path", meta.RelPath, "error", err)
			res.Failures = append(res.Failures, Failure{Path: meta.RelPath, Op: "copy", Err: err})
			continue
		}

		slog.Debug("copied", "path", meta.RelPath, "size", meta.Size)
		res.Copied = append(res.Copied, meta.RelPath)
		res.BytesCopied += meta.Size
	}

	res.FinishedAt = time.Now()
	return res, nil
}
