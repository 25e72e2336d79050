package mirror

import (
	"errors"
	"time"
)

var (
	// ErrBackup marks a failed pre-sync snapshot. Fatal for that file's
	// sync, recorded as a failure, never aborts the pass.
	ErrBackup = errors.New("backup error")

	// ErrState marks a corrupted state database. Fatal at startup;
	// proceeding would risk re-syncing unnecessarily or skipping
	// necessary syncs.
	ErrState = errors.New("state error")

	// ErrLocked means another mirrorbox instance holds the state lock.
	ErrLocked = errors.New("state dir locked by another process")
)

// FileAction classifies the outcome of one file within a pass.
type FileAction string

const (
	ActionCopied  FileAction = "copied"
	ActionSkipped FileAction = "skipped"
	ActionFailed  FileAction = "failed"
)

// Failure records one file the pass could not sync. Failures are isolated:
// the pass continues past them.
type Failure struct {
	Path string
	Op   string // "backup" or "copy"
	Err  error
}

func (f Failure) Error() string {
	return f.Op + " " + f.Path + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}

// BackupRecord describes one pre-overwrite snapshot. Created immediately
// before a target file is replaced, never mutated afterwards.
type BackupRecord struct {
	RelPath    string
	BackupPath string
	Timestamp  time.Time
}

// Result is the outcome of one sync pass, produced fresh per invocation
// and owned by the caller for logging and reporting.
type Result struct {
	PassID      string
	StartedAt   time.Time
	FinishedAt  time.Time
	DryRun      bool
	NoChanges   bool // detector found nothing to do, engine never ran
	Copied      []string
	Skipped     []string
	Failures    []Failure
	Backups     []BackupRecord
	BytesCopied int64
}

// Success reports whether the pass completed without any per-file failure.
// A pass that resolved zero files is a successful no-op.
func (r *Result) Success() bool {
	return len(r.Failures) == 0
}
