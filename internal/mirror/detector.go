package mirror

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

// FileMeta is the scanned identity of one resolved source file. ETag is the
// MD5 of the file contents, so detection survives clock skew and
// mtime-preserving copies.
type FileMeta struct {
	RelPath string
	Size    int64
	ETag    string
	ModTime time.Time
}

// Detector scans the resolved file set and summarizes it into a single
// deterministic fingerprint. It never mutates state.
type Detector struct {
	sourceDir string
	rules     *RuleSet
}

func NewDetector(sourceDir string, rules *RuleSet) *Detector {
	return &Detector{
		sourceDir: sourceDir,
		rules:     rules,
	}
}

// Scan resolves the include/exclude set and hashes every file, returning
// metadata sorted lexicographically by relative path. Matched files that
// cannot be read come back as failures so the pass reports them instead of
// silently dropping them.
func (d *Detector) Scan() ([]FileMeta, []Failure, error) {
	resolved, err := d.rules.Resolve(d.sourceDir)
	if err != nil {
		return nil, nil, err
	}

	var failures []Failure
	metas := make([]FileMeta, 0, len(resolved))
	for _, relPath := range resolved {
		absPath := filepath.Join(d.sourceDir, filepath.FromSlash(relPath))

		info, err := os.Stat(absPath)
		if err != nil {
			failures = append(failures, Failure{Path: relPath, Op: "scan", Err: err})
			continue
		}

		etag, err := utils.FileHash(absPath)
		if err != nil {
			failures = append(failures, Failure{Path: relPath, Op: "scan", Err: err})
			continue
		}

		metas = append(metas, FileMeta{
			RelPath: relPath,
			Size:    info.Size(),
			ETag:    etag,
			ModTime: info.ModTime(),
		})
	}

	return metas, failures, nil
}

// CombinedFingerprint folds a sorted scan into one digest. Same source tree
// and same config always yield the same value.
func CombinedFingerprint(metas []FileMeta) string {
	hash := md5.New()
	for _, meta := range metas {
		fmt.Fprintf(hash, "%s %d %s\n", meta.RelPath, meta.Size, meta.ETag)
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// HasChanges compares a fingerprint against the prior recorded state.
// A nil prior means first run, which always syncs.
func HasChanges(fingerprint string, prior *SyncState) bool {
	if prior == nil {
		return true
	}
	return prior.Fingerprint != fingerprint
}
