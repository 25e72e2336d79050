// Package config loads and validates the mirrorbox sync configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mirrorbox/mirrorbox/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".mirrorbox", "config.yaml")
	DefaultStateDir   = filepath.Join(home, ".mirrorbox")
	DefaultLogFile    = filepath.Join(home, ".mirrorbox", "logs", "mirrorbox.log")
)

const DefaultSyncInterval = 300 // seconds

// ErrConfig marks a fatal configuration problem. A sync never starts
// with an invalid config.
var ErrConfig = errors.New("config error")

// Config is the parsed sync configuration. SyncFiles order is preserved,
// though exclusions always win over any include pattern.
type Config struct {
	SourceDir       string   `yaml:"source_dir"`
	TargetDir       string   `yaml:"target_dir"`
	SyncFiles       []string `yaml:"sync_files"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	AutoBackup      bool     `yaml:"auto_backup"`
	BackupDir       string   `yaml:"backup_dir"`
	SyncInterval    int      `yaml:"sync_interval"`
	DryRun          bool     `yaml:"dry_run"`
	StateDir        string   `yaml:"state_dir"`

	Path string `yaml:"-"`
}

// Load reads and validates the config at path. It performs no I/O beyond
// reading this one file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
	}

	cfg.Path = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
}

// Validate checks the invariants the sync engine relies on.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("%w: source_dir is required", ErrConfig)
	}
	if c.TargetDir == "" {
		return fmt.Errorf("%w: target_dir is required", ErrConfig)
	}
	if len(c.SyncFiles) == 0 {
		return fmt.Errorf("%w: sync_files must list at least one pattern", ErrConfig)
	}
	if c.AutoBackup && c.BackupDir == "" {
		return fmt.Errorf("%w: backup_dir is required when auto_backup is enabled", ErrConfig)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("%w: sync_interval must be positive", ErrConfig)
	}

	for _, field := range []*string{&c.SourceDir, &c.TargetDir, &c.BackupDir, &c.StateDir} {
		if *field == "" {
			continue
		}
		resolved, err := utils.ResolvePath(*field)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %w", ErrConfig, *field, err)
		}
		*field = resolved
	}

	return nil
}

// Interval returns the sync interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.SyncInterval) * time.Second
}

// Save writes the config back to path as YAML.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// StarterYAML is the commented config written by `mirrorbox init`.
const StarterYAML = `# mirrorbox configuration
# Mirrors a curated subset of files from source_dir into target_dir.

source_dir: ~/dev/app
target_dir: /srv/app

# Ordered include patterns, relative to source_dir. Doublestar globs.
sync_files:
  - "app/**/*.py"
  - "static/**"

# Gitignore-style exclusions. A file matching both an include and an
# exclude pattern is always excluded.
exclude_patterns:
  - "app/secret.py"
  - "*.tmp"

# Snapshot target files into backup_dir before overwriting them.
auto_backup: true
backup_dir: /srv/backups/app

# Daemon loop interval in seconds.
sync_interval: 300
`

// WriteStarter writes the commented starter config to path. Refuses to
// clobber an existing file.
func WriteStarter(path string) error {
	if utils.FileExists(path) {
		return fmt.Errorf("%w: %s already exists", ErrConfig, path)
	}
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(StarterYAML), 0o644)
}
