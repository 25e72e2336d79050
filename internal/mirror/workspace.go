package mirror

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/mirrorbox/mirrorbox/internal/mirror/config"
	"github.com/mirrorbox/mirrorbox/internal/utils"
)

const (
	lockFileName = "mirrorbox.lock"
	dbFileName   = "state.db"
)

// Workspace holds the resolved directory layout for one sync setup and the
// instance lock that keeps two mirrorbox processes off the same target.
type Workspace struct {
	SourceDir string
	TargetDir string
	BackupDir string
	StateDir  string
	DBPath    string

	flock *flock.Flock
}

func NewWorkspace(cfg *config.Config) (*Workspace, error) {
	if !utils.DirExists(cfg.SourceDir) {
		return nil, fmt.Errorf("source dir does not exist: %s", cfg.SourceDir)
	}

	return &Workspace{
		SourceDir: cfg.SourceDir,
		TargetDir: cfg.TargetDir,
		BackupDir: cfg.BackupDir,
		StateDir:  cfg.StateDir,
		DBPath:    filepath.Join(cfg.StateDir, dbFileName),
		flock:     flock.New(filepath.Join(cfg.StateDir, lockFileName)),
	}, nil
}

// Lock takes the instance lock. Returns ErrLocked when another process
// already holds it.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.StateDir); err != nil {
		return fmt.Errorf("create state dir %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock state dir: %w", err)
	}
	if !locked {
		return ErrLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	return w.flock.Unlock()
}
