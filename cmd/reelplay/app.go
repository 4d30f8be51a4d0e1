package main

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/reelplay/internal/audio"
	"github.com/genricoloni/reelplay/internal/config"
	"github.com/genricoloni/reelplay/internal/convert"
	"github.com/genricoloni/reelplay/internal/cover"
	"github.com/genricoloni/reelplay/internal/display"
	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/engine"
	"github.com/genricoloni/reelplay/internal/fetcher"
	"github.com/genricoloni/reelplay/internal/history"
	"github.com/genricoloni/reelplay/internal/library"
	"github.com/genricoloni/reelplay/internal/notifier"
	"github.com/genricoloni/reelplay/internal/playback"
	"github.com/genricoloni/reelplay/internal/playlist"
	"github.com/genricoloni/reelplay/internal/presence"
	"github.com/genricoloni/reelplay/internal/processor"
	"github.com/genricoloni/reelplay/internal/source"
	"github.com/genricoloni/reelplay/internal/store"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// defaultQueue receives files passed on the command line
const defaultQueue = "queue"

// Options are the command line settings
type Options struct {
	Overrides    config.Overrides
	Files        []string
	LogLevel     string
	Playlist     string
	Shuffle      bool
	LoopPlaylist bool
	LoopTrack    bool
}

// AppOptions is the dependency graph of the player
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		config.NewAppConfig,
		func(c *config.AppConfig) domain.Config { return c },
		func(c *config.AppConfig) domain.Settings { return c },

		func(logger *zap.Logger, cfg domain.Config) domain.SourceOpener { return source.NewOpener(logger, cfg) },
		func(logger *zap.Logger, cfg domain.Config) domain.DurationProber {
			return source.NewProber(logger, cfg.GetFFprobePath())
		},
		audio.NewFFplayEngine,
		func(e *audio.FFplayEngine) domain.AudioEngine { return e },

		func(logger *zap.Logger) domain.Notifier { return notifier.NewNotifier(logger) },
		presence.NewPublisher,
		func(p *presence.Publisher) domain.Presence { return p },

		playlist.NewLibrary,
		func(lib *playlist.Library) domain.PlaylistStore { return lib },
		func() *history.History { return history.New(history.DefaultLimit) },
		newCoordinator,
		newConverter,

		fetcher.NewHTTPFetcher,
		func(f *fetcher.HTTPFetcher) domain.Fetcher { return f },
		cover.NewStore,
		processor.NewBackdrop,

		display.NewScreenResolution,
		engine.NewHeadlessRenderer,
		func(r *engine.HeadlessRenderer) domain.Renderer { return r },
		newEngine,

		func(logger *zap.Logger, cfg domain.Config) *store.Store { return store.NewStore(logger, cfg.GetDataDir()) },
		newSaver,
		newWatcher,
	),
	fx.Invoke(registerHooks),
)

func newCoordinator(
	logger *zap.Logger,
	settings domain.Settings,
	player domain.AudioEngine,
	opener domain.SourceOpener,
	prober domain.DurationProber,
	playlists domain.PlaylistStore,
	hist *history.History,
	n domain.Notifier,
	pres domain.Presence,
) *playback.Coordinator {
	return playback.NewCoordinator(logger, settings, player, opener, prober, playlists, hist, n, pres)
}

func newConverter(logger *zap.Logger, cfg domain.Config, lib *playlist.Library, n domain.Notifier) *convert.Converter {
	return convert.NewConverter(logger, cfg, lib, n)
}

func newEngine(
	logger *zap.Logger,
	settings domain.Settings,
	coord *playback.Coordinator,
	player *audio.FFplayEngine,
	renderer domain.Renderer,
	covers *cover.Store,
	backdrop *processor.Backdrop,
) *engine.Engine {
	return engine.NewEngine(logger, settings, coord, player.Events(), renderer, covers, backdrop)
}

// snapshotSettings captures the preferences worth restoring
func snapshotSettings(cfg *config.AppConfig, coord *playback.Coordinator) store.SettingsState {
	st := coord.Status()
	return store.SettingsState{
		Threaded:        cfg.Threaded(),
		TargetFramerate: cfg.TargetFramerate(),
		Volume:          st.Volume,
		LoopTrack:       st.Flags.LoopTrack,
		Shuffle:         st.Flags.Shuffle,
		LoopPlaylist:    st.Flags.LoopPlaylist,
	}
}

func newSaver(
	logger *zap.Logger,
	st *store.Store,
	lib *playlist.Library,
	hist *history.History,
	cfg *config.AppConfig,
	coord *playback.Coordinator,
) *store.Saver {
	return store.NewSaver(logger, st, func() store.State {
		return store.Capture(lib, hist, snapshotSettings(cfg, coord))
	})
}

func newWatcher(
	logger *zap.Logger,
	lib *playlist.Library,
	hist *history.History,
	coord *playback.Coordinator,
	covers *cover.Store,
) *library.Watcher {
	playing := func() *domain.Track { return coord.Status().Track }
	removed := func(t *domain.Track) {
		hist.Remove(t)
		if err := covers.Forget(t); err != nil {
			logger.Warn("Failed to forget cover", zap.Error(err))
		}
	}
	return library.NewWatcher(logger, lib, playing, removed)
}

// hookParams groups everything the lifecycle hooks start and stop
type hookParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Options   Options
	Config    *config.AppConfig
	Store     *store.Store
	Saver     *store.Saver
	Library   *playlist.Library
	History   *history.History
	Converter *convert.Converter
	Coord     *playback.Coordinator
	Audio     *audio.FFplayEngine
	Presence  *presence.Publisher
	Watcher   *library.Watcher
	Engine    *engine.Engine
}

// registerHooks sets up application lifecycle hooks
func registerHooks(p hookParams) {
	queueCtx, cancelQueue := context.WithCancel(context.Background())
	queueDone := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("reelplay starting")

			if err := restoreState(p); err != nil {
				return err
			}

			if err := p.Watcher.Start(ctx); err != nil {
				p.Logger.Warn("Library watcher unavailable", zap.Error(err))
			}
			if err := p.Presence.Start(ctx); err != nil {
				p.Logger.Warn("Now playing presence unavailable", zap.Error(err))
			}
			if err := p.Saver.Start(); err != nil {
				return err
			}
			if err := p.Engine.Start(ctx); err != nil {
				return err
			}

			go func() {
				defer close(queueDone)
				if err := enqueue(queueCtx, p); err != nil {
					p.Logger.Error("Failed to play command line files", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Shutting down")
			cancelQueue()
			<-queueDone

			var err error
			err = multierr.Append(err, p.Engine.Stop(ctx))
			err = multierr.Append(err, p.Saver.Stop())
			err = multierr.Append(err, p.Watcher.Stop(ctx))
			err = multierr.Append(err, p.Coord.Close())
			err = multierr.Append(err, p.Converter.Close(ctx))
			err = multierr.Append(err, p.Audio.Close(ctx))
			err = multierr.Append(err, p.Presence.Stop(ctx))
			_ = p.Logger.Sync()
			return err
		},
	})
}

// restoreState loads the saved document and applies it under the command line flags
func restoreState(p hookParams) error {
	st, err := p.Store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	store.Apply(p.Logger, st, p.Library, p.History, p.Converter.Prepare)

	// A saved document always carries a framerate
	saved := st.Settings.TargetFramerate > 0
	ov := p.Options.Overrides
	if ov.Threaded == nil && saved {
		p.Config.SetThreaded(st.Settings.Threaded)
	}
	if ov.TargetFramerate == 0 && saved {
		p.Config.SetTargetFramerate(st.Settings.TargetFramerate)
	}

	volume := p.Config.InitialVolume()
	if saved {
		volume = st.Settings.Volume
	}
	if err := p.Coord.SetVolume(volume); err != nil {
		p.Logger.Warn("Failed to restore volume", zap.Error(err))
	}
	p.Coord.SetLoopTrack(st.Settings.LoopTrack || p.Options.LoopTrack)
	p.Coord.SetShuffle(st.Settings.Shuffle || p.Options.Shuffle)
	p.Coord.SetLoopPlaylist(st.Settings.LoopPlaylist || p.Options.LoopPlaylist)
	return nil
}

// enqueue adds the command line files to the queue playlist and plays the first one
func enqueue(ctx context.Context, p hookParams) error {
	if len(p.Options.Files) == 0 {
		return nil
	}

	name := p.Options.Playlist
	if name == "" {
		name = defaultQueue
	}
	pl, ok := p.Library.Get(name)
	if !ok {
		var err error
		if pl, err = p.Library.Create(name); err != nil {
			return err
		}
	}

	var first *domain.Track
	for _, path := range p.Options.Files {
		t, err := pl.Add(path)
		if err != nil {
			p.Logger.Warn("Skipping file", zap.String("path", path), zap.Error(err))
			continue
		}
		p.Converter.Prepare(t)
		if first == nil {
			first = t
		}
	}
	p.Watcher.Sync()
	if first == nil {
		return fmt.Errorf("none of the %d files could be added", len(p.Options.Files))
	}

	if err := waitReady(ctx, first); err != nil {
		return err
	}
	return p.Coord.Play(first, pl.Index(first))
}

// waitReady blocks while t is being converted
func waitReady(ctx context.Context, t *domain.Track) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for t.Pending() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
