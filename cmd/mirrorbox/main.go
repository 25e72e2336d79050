package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorbox/mirrorbox/internal/mirror/config"
	"github.com/mirrorbox/mirrorbox/internal/utils"
	"github.com/mirrorbox/mirrorbox/internal/version"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "mirrorbox",
	Short:   "MirrorBox - one-way file mirror from a dev tree to a production tree",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "mirrorbox config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func main() {
	viper.SetEnvPrefix("MIRRORBOX")
	viper.AutomaticEnv()

	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" {
			level = slog.LevelDebug
		}
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handlers := []slog.Handler{stdoutHandler}

	// Best effort file log next to the state dir; stdout alone if it fails.
	logFile := config.DefaultLogFile
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
		if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	slog.SetDefault(slog.New(utils.NewFanoutHandler(handlers...)))
}

// loadSyncConfig resolves the config path (flag, then MIRRORBOX_CONFIG env,
// then default) and loads it. Env vars override the file for the knobs that
// make sense per invocation.
func loadSyncConfig(cmd *cobra.Command) (*config.Config, error) {
	path := config.DefaultConfigPath
	if cmd.Flag("config").Changed {
		path, _ = cmd.Flags().GetString("config")
	} else if envPath := viper.GetString("config"); envPath != "" {
		path = envPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v := viper.GetInt("sync_interval"); v > 0 {
		cfg.SyncInterval = v
	}
	if viper.GetBool("dry_run") {
		cfg.DryRun = true
	}

	slog.Debug("config loaded", "path", path, "source", cfg.SourceDir, "target", cfg.TargetDir)
	return cfg, nil
}
