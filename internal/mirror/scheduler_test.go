package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorbox/mirrorbox/internal/mirror/config"
)

func newTestConfig(t *testing.T, sourceFiles map[string]string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		SourceDir:    t.TempDir(),
		TargetDir:    t.TempDir(),
		BackupDir:    t.TempDir(),
		StateDir:     t.TempDir(),
		SyncFiles:    []string{"**"},
		AutoBackup:   true,
		SyncInterval: 1,
	}
	writeTree(t, cfg.SourceDir, sourceFiles)
	return cfg
}

func newTestScheduler(t *testing.T, cfg *config.Config) *Scheduler {
	t.Helper()
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Close() })
	return sched
}

func TestScheduler_FirstRunAlwaysSyncs(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	sched := newTestScheduler(t, cfg)

	changed, err := sched.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, changed, "no prior state must report changes")

	res, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.NoChanges)
	assert.Equal(t, []string{"a.txt"}, res.Copied)
}

func TestScheduler_SecondRunIsNoop(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	sched := newTestScheduler(t, cfg)

	res, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	require.True(t, res.Success())

	// no intervening source changes: detector short-circuits the pass
	res, err = sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.NoChanges)
	assert.Empty(t, res.Copied)

	changed, err := sched.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestScheduler_ForceBypassesDetector(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	sched := newTestScheduler(t, cfg)

	_, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)

	res, err := sched.RunOnce(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, res.NoChanges)
	assert.Equal(t, []string{"a.txt"}, res.Copied, "force recopies despite identical trees")
}

func TestScheduler_DryRunKeepsChangesPending(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	cfg.DryRun = true
	sched := newTestScheduler(t, cfg)

	res, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.DryRun)

	changed, err := sched.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, changed, "dry run must not record a successful sync")
}

func TestScheduler_UnreadableSourceIsARecordedFailure(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"good.txt": "ok"})
	require.NoError(t, os.Symlink(filepath.Join(cfg.SourceDir, "missing"), filepath.Join(cfg.SourceDir, "bad.txt")))
	sched := newTestScheduler(t, cfg)

	res, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)

	// the unreadable file is a recorded failure, not a silent skip
	assert.False(t, res.Success())
	assert.Equal(t, []string{"good.txt"}, res.Copied)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad.txt", res.Failures[0].Path)
	assert.Equal(t, "scan", res.Failures[0].Op)

	files, ferr := sched.store.PassFiles(res.PassID)
	require.NoError(t, ferr)
	var journaled bool
	for _, f := range files {
		if f.Path == "bad.txt" && f.Action == string(ActionFailed) {
			journaled = true
		}
	}
	assert.True(t, journaled, "journal must carry the failed row")

	// a later pass must not short-circuit past the persistent failure
	res, err = sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.NoChanges)
	assert.False(t, res.Success())

	changed, err := sched.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestScheduler_SecondInstanceIsLockedOut(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	newTestScheduler(t, cfg)

	_, err := NewScheduler(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestScheduler_DaemonStopsMidSleep(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "a"})
	sched := newTestScheduler(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sched.RunDaemon(ctx, 30*time.Second, false)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, elapsed, 5*time.Second, "shutdown must not wait out the interval")

	// the first pass ran before the cancel landed
	passes, err := sched.store.Passes(10)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.True(t, passes[0].Success)
}

func TestScheduler_DaemonSurvivesFailingPasses(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"sub/b.txt": "b"})
	sched := newTestScheduler(t, cfg)

	// a regular file blocking the sub/ directory makes every pass fail
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TargetDir, "sub"), []byte("blocker"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	err := sched.RunDaemon(ctx, 100*time.Millisecond, false)
	assert.Error(t, err) // context deadline, not the pass failure

	passes, perr := sched.store.Passes(10)
	require.NoError(t, perr)
	assert.GreaterOrEqual(t, len(passes), 2, "loop must keep running across failing passes")
	for _, p := range passes {
		assert.False(t, p.Success)
	}
}

func TestScheduler_PicksUpSourceEdits(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"a.txt": "v1"})
	sched := newTestScheduler(t, cfg)

	_, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)

	writeTree(t, cfg.SourceDir, map[string]string{"a.txt": "v2"})

	res, err := sched.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, res.Copied)

	data := filepath.Join(cfg.TargetDir, "a.txt")
	assert.FileExists(t, data)
}
