package mirror

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mirrorbox/mirrorbox/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    fingerprint TEXT NOT NULL,
    synced_at TEXT NOT NULL -- RFC3339
);

CREATE TABLE IF NOT EXISTS sync_passes (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    dry_run INTEGER NOT NULL,
    success INTEGER NOT NULL,
    copied INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    bytes_copied INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_files (
    pass_id TEXT NOT NULL REFERENCES sync_passes(id),
    path TEXT NOT NULL,
    action TEXT NOT NULL,
    backup_path TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_files_pass ON sync_files(pass_id);
`

// SyncState is the single record of the last fully successful sync.
// Rewritten only after a successful non-dry pass, never partially updated.
type SyncState struct {
	Fingerprint string
	SyncedAt    time.Time
}

// PassRow is one journal entry for the history listing.
type PassRow struct {
	ID          string `db:"id"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
	DryRun      bool   `db:"dry_run"`
	Success     bool   `db:"success"`
	Copied      int    `db:"copied"`
	Skipped     int    `db:"skipped"`
	Failed      int    `db:"failed"`
	BytesCopied int64  `db:"bytes_copied"`
}

// FileRow is one per-file journal entry within a pass.
type FileRow struct {
	PassID     string `db:"pass_id"`
	Path       string `db:"path"`
	Action     string `db:"action"`
	BackupPath string `db:"backup_path"`
	Error      string `db:"error"`
}

type dbSyncState struct {
	ID          int    `db:"id"`
	Fingerprint string `db:"fingerprint"`
	SyncedAt    string `db:"synced_at"`
}

// StateStore persists the last-sync state and the pass journal in SQLite.
// An absent database means first run; an unreadable one is surfaced as
// ErrState since that indicates corruption rather than absence.
type StateStore struct {
	db     *sqlx.DB
	dbPath string
}

func NewStateStore(dbPath string) *StateStore {
	return &StateStore{dbPath: dbPath}
}

// Open the store and the underlying database.
func (s *StateStore) Open() error {
	if s.db != nil {
		return fmt.Errorf("state store already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(s.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("%w: open %s: %w (delete the file to reset sync state)", ErrState, s.dbPath, err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("%w: init schema: %w (delete %s to reset sync state)", ErrState, err, s.dbPath)
	}

	s.db = conn
	return nil
}

func (s *StateStore) Close() error {
	if s.db == nil {
		return fmt.Errorf("state store not open")
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	slog.Debug("state store closed")
	return nil
}

// LastSync returns the recorded state of the last successful sync, or nil
// when none exists yet.
func (s *StateStore) LastSync() (*SyncState, error) {
	var row dbSyncState
	err := s.db.Get(&row, "SELECT id, fingerprint, synced_at FROM sync_state WHERE id = 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: query last sync: %w", ErrState, err)
	}

	syncedAt, err := time.Parse(time.RFC3339, row.SyncedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: parse synced_at %q: %w (delete %s to reset sync state)", ErrState, row.SyncedAt, err, s.dbPath)
	}

	return &SyncState{
		Fingerprint: row.Fingerprint,
		SyncedAt:    syncedAt,
	}, nil
}

// RecordPass journals the pass and, when it fully succeeded outside dry-run
// mode, replaces the last-sync state in the same transaction.
func (s *StateStore) RecordPass(res *Result, fingerprint string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	pass := PassRow{
		ID:          res.PassID,
		StartedAt:   res.StartedAt.Format(time.RFC3339),
		FinishedAt:  res.FinishedAt.Format(time.RFC3339),
		DryRun:      res.DryRun,
		Success:     res.Success(),
		Copied:      len(res.Copied),
		Skipped:     len(res.Skipped),
		Failed:      len(res.Failures),
		BytesCopied: res.BytesCopied,
	}

	_, err = tx.NamedExec(`INSERT INTO sync_passes (id, started_at, finished_at, dry_run, success, copied, skipped, failed, bytes_copied)
	          VALUES (:id, :started_at, :finished_at, :dry_run, :success, :copied, :skipped, :failed, :bytes_copied)`, pass)
	if err != nil {
		return fmt.Errorf("insert pass %s: %w", res.PassID, err)
	}

	backupByPath := make(map[string]string, len(res.Backups))
	for _, rec := range res.Backups {
		backupByPath[rec.RelPath] = rec.BackupPath
	}

	rows := make([]FileRow, 0, len(res.Copied)+len(res.Skipped)+len(res.Failures))
	for _, path := range res.Copied {
		rows = append(rows, FileRow{
			PassID:     res.PassID,
			Path:       path,
			Action:     string(ActionCopied),
			BackupPath: backupByPath[path],
		})
	}
	for _, path := range res.Skipped {
		rows = append(rows, FileRow{
			PassID: res.PassID,
			Path:   path,
			Action: string(ActionSkipped),
		})
	}
	for _, failure := range res.Failures {
		rows = append(rows, FileRow{
			PassID: res.PassID,
			Path:   failure.Path,
			Action: string(ActionFailed),
			Error:  failure.Error(),
		})
	}

	for _, row := range rows {
		_, err = tx.NamedExec(`INSERT INTO sync_files (pass_id, path, action, backup_path, error)
		          VALUES (:pass_id, :path, :action, :backup_path, :error)`, row)
		if err != nil {
			return fmt.Errorf("insert file row %s: %w", row.Path, err)
		}
	}

	if res.Success() && !res.DryRun {
		_, err = tx.Exec(`INSERT OR REPLACE INTO sync_state (id, fingerprint, synced_at)
		          VALUES (1, ?, ?)`, fingerprint, res.FinishedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
	}

	return tx.Commit()
}

// Passes lists the most recent journal entries, newest first.
func (s *StateStore) Passes(limit int) ([]PassRow, error) {
	var rows []PassRow
	err := s.db.Select(&rows, "SELECT * FROM sync_passes ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	return rows, nil
}

// PassFiles lists the per-file entries journaled under one pass.
func (s *StateStore) PassFiles(passID string) ([]FileRow, error) {
	var rows []FileRow
	err := s.db.Select(&rows, "SELECT * FROM sync_files WHERE pass_id = ? ORDER BY path", passID)
	if err != nil {
		return nil, fmt.Errorf("query files for pass %s: %w", passID, err)
	}
	return rows, nil
}
