package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mirrorbox/mirrorbox/internal/mirror/config"
)

// Scheduler owns one sync setup: it wraps the change detector and the
// engine for manual passes and runs the daemon loop. One pass runs to
// completion before the next begins; there is no parallel fan-out.
type Scheduler struct {
	cfg      *config.Config
	ws       *Workspace
	store    *StateStore
	detector *Detector
	engine   *Engine
}

// NewScheduler resolves the workspace, takes the instance lock and opens
// the state store. Callers must Close.
func NewScheduler(cfg *config.Config) (*Scheduler, error) {
	ws, err := NewWorkspace(cfg)
	if err != nil {
		return nil, err
	}

	if err := ws.Lock(); err != nil {
		return nil, err
	}

	store := NewStateStore(ws.DBPath)
	if err := store.Open(); err != nil {
		ws.Unlock()
		return nil, err
	}

	rules := NewRuleSet(cfg.SyncFiles, cfg.ExcludePatterns)

	return &Scheduler{
		cfg:      cfg,
		ws:       ws,
		store:    store,
		detector: NewDetector(ws.SourceDir, rules),
		engine:   NewEngine(ws, cfg.AutoBackup),
	}, nil
}

func (s *Scheduler) Close() error {
	err := s.store.Close()
	if uerr := s.ws.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// Check scans the source tree and reports whether it differs from the last
// recorded sync, without writing anything.
func (s *Scheduler) Check(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	scan, scanFails, err := s.detector.Scan()
	if err != nil {
		return false, err
	}
	// unreadable source files need operator attention, report them as pending
	if len(scanFails) > 0 {
		return true, nil
	}

	prior, err := s.store.LastSync()
	if err != nil {
		return false, err
	}

	return HasChanges(CombinedFingerprint(scan), prior), nil
}

// RunOnce performs one sync pass: detect, sync, record. With force the
// change check is bypassed and every file is copied regardless of target
// contents.
func (s *Scheduler) RunOnce(ctx context.Context, force bool) (*Result, error) {
	scan, scanFails, err := s.detector.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan source tree: %w", err)
	}
	fingerprint := CombinedFingerprint(scan)

	// never short-circuit past scan failures: the pass must run and report
	// them
	if !force && len(scanFails) == 0 {
		prior, err := s.store.LastSync()
		if err != nil {
			return nil, err
		}
		if !HasChanges(fingerprint, prior) {
			now := time.Now()
			return &Result{NoChanges: true, StartedAt: now, FinishedAt: now}, nil
		}
	}

	res, err := s.engine.Run(ctx, scan, force, s.cfg.DryRun)
	if err != nil {
		return res, err
	}
	res.Failures = append(scanFails, res.Failures...)

	if err := s.store.RecordPass(res, fingerprint); err != nil {
		return res, fmt.Errorf("record pass %s: %w", res.PassID, err)
	}

	return res, nil
}

// RunDaemon loops RunOnce at the configured interval until ctx is
// cancelled. With watch enabled, debounced source events trigger the next
// pass ahead of the tick. Per-pass failures are logged, never terminal:
// the daemon must keep running across transient errors.
func (s *Scheduler) RunDaemon(ctx context.Context, interval time.Duration, watch bool) error {
	slog.Info("daemon start", "interval", interval, "watch", watch, "source", s.ws.SourceDir, "target", s.ws.TargetDir)

	var nudges <-chan struct{}
	if watch {
		watcher := NewWatcher(s.ws.SourceDir)
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Stop()
		nudges = watcher.Nudges()
	}

	timer := time.NewTimer(0) // first pass runs immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("daemon stopping")
			return ctx.Err()

		case <-timer.C:

		case <-nudges:
			slog.Info("source changed, syncing early")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		res, err := s.RunOnce(ctx, false)
		switch {
		case errors.Is(err, context.Canceled):
			slog.Info("daemon stopping")
			return err
		case err != nil:
			slog.Error("sync pass failed", "error", err)
		default:
			s.LogOutcome(res)
		}

		timer.Reset(interval)
	}
}

// LogOutcome emits the one outcome record per pass that the log sink renders.
func (s *Scheduler) LogOutcome(res *Result) {
	if res.NoChanges {
		slog.Info("no changes detected")
		return
	}

	attrs := []any{
		"pass", res.PassID,
		"copied", len(res.Copied),
		"skipped", len(res.Skipped),
		"failed", len(res.Failures),
		"bytes", humanize.Bytes(uint64(res.BytesCopied)),
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
		"dry_run", res.DryRun,
	}

	if res.Success() {
		slog.Info("sync pass complete", attrs...)
	} else {
		slog.Warn("sync pass completed with failures", attrs...)
		for _, failure := range res.Failures {
			slog.Error("sync failure", "path", failure.Path, "op", failure.Op, "error", failure.Err)
		}
	}
}
