package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/reelplay/internal/config"
	"github.com/genricoloni/reelplay/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI: reelplay [flags] [files...]
func newRootCmd() *cobra.Command {
	var (
		opts     Options
		threaded bool
	)

	cmd := &cobra.Command{
		Use:   "reelplay [files...]",
		Short: "Play local audio and video playlists",
		Long: `reelplay plays playlists of local audio and video files, decoding video frames
in the background and remembering where each track was left.

Files given on the command line are appended to the queue playlist and played.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threaded") {
				opts.Overrides.Threaded = &threaded
			}
			opts.Files = args
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Overrides.DataDir, "data-dir", "", "directory for state, covers and converted audio (env REELPLAY_DATA_DIR)")
	flags.StringVar(&opts.Overrides.EnvFile, "env-file", "", "dotenv file to load (default .env)")
	flags.BoolVar(&threaded, "threaded", true, "decode video frames on a background goroutine")
	flags.Float64Var(&opts.Overrides.TargetFramerate, "framerate", 0, "target render framerate")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.Playlist, "playlist", defaultQueue, "playlist receiving the command line files")
	flags.BoolVar(&opts.Shuffle, "shuffle", false, "pick the next track at random")
	flags.BoolVar(&opts.LoopPlaylist, "loop", false, "restart the playlist after its last track")
	flags.BoolVar(&opts.LoopTrack, "loop-track", false, "repeat the current track")

	return cmd
}

// run starts the application and blocks until interrupted
func run(parent context.Context, opts Options) error {
	if parent == nil {
		parent = context.Background()
	}

	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Supply(opts, opts.Overrides),
		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop cleanly: %w", err)
	}
	return nil
}

// newLogger creates the zap logger; the log file lives in the data directory
func newLogger(opts Options) (*zap.Logger, error) {
	// The data directory may come from the env file
	envErr := config.LoadEnv(opts.Overrides.EnvFile)

	cfg := logger.DefaultConfig(config.ResolveDataDir(opts.Overrides))
	if opts.LogLevel != "" {
		cfg.Level = opts.LogLevel
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn("Failed to load env file",
			zap.String("path", opts.Overrides.EnvFile),
			zap.Error(envErr))
	}
	return log, nil
}
