//go:build linux
// +build linux

package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"go.uber.org/zap"
)

const (
	busName       = "org.mpris.MediaPlayer2.reelplay"
	objectPath    = "/org/mpris/MediaPlayer2"
	rootIface     = "org.mpris.MediaPlayer2"
	playerIface   = "org.mpris.MediaPlayer2.Player"
	identity      = "reelplay"
	changedSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
	trackPrefix   = "/org/reelplay/track/"
)

// DefaultDebounce is how long the publisher waits for silence before broadcasting
const DefaultDebounce = 500 * time.Millisecond

// Publisher broadcasts the now-playing state as MPRIS PropertiesChanged signals.
// The player object is exported read-only so clients can query it after a signal;
// it accepts no transport commands (CanControl is false).
type Publisher struct {
	logger    *zap.Logger
	connect   func() (DBusClient, error)
	debounce  time.Duration
	updates   chan domain.NowPlaying
	mu        sync.Mutex
	running   bool
	exported  bool
	cancel    context.CancelFunc
	conn      DBusClient
	wg        sync.WaitGroup
	published int
}

// NewPublisher creates a publisher bound to the session bus
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{
		logger:   logger,
		connect:  NewStdDBusClient,
		debounce: DefaultDebounce,
		updates:  make(chan domain.NowPlaying, 1),
	}
}

// Start connects to the session bus and launches the publishing loop.
// It returns immediately (non-blocking).
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	conn, err := p.connect()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	owner, err := conn.RequestName(busName)
	if err != nil {
		p.logger.Warn("Failed to request bus name", zap.String("name", busName), zap.Error(err))
	} else if !owner {
		p.logger.Warn("Bus name already taken, publishing anonymously", zap.String("name", busName))
	}

	exported := true
	if err := conn.ExportProperties(objectPath, properties()); err != nil {
		p.logger.Warn("Failed to export player properties, broadcasting signals only", zap.Error(err))
		exported = false
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.conn = conn
	p.exported = exported
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.runLoop(loopCtx)

	p.logger.Info("Presence publisher started")
	return nil
}

// Stop halts the loop and closes the bus connection
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.Close(); err != nil {
		p.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
	p.conn = nil
	p.exported = false

	p.logger.Info("Presence publisher shutdown complete")
	return nil
}

// Update queues np for publication, replacing any update not yet consumed
func (p *Publisher) Update(np domain.NowPlaying) {
	for {
		select {
		case p.updates <- np:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

// Published returns how many signals were broadcast
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

// runLoop coalesces rapid updates, e.g. while skipping through a playlist
func (p *Publisher) runLoop(ctx context.Context) {
	defer p.wg.Done()

	timer := time.NewTimer(p.debounce)
	timer.Stop()

	var pending *domain.NowPlaying

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Presence loop stopped")
			return

		case np := <-p.updates:
			pending = &np
			timer.Reset(p.debounce)

		case <-timer.C:
			if pending != nil {
				p.publish(*pending)
				pending = nil
			}
		}
	}
}

func (p *Publisher) publish(np domain.NowPlaying) {
	p.mu.Lock()
	conn, exported := p.conn, p.exported
	p.mu.Unlock()
	if conn == nil {
		return
	}

	status, meta := string(np.Status), metadata(np)
	if exported {
		if err := conn.SetProperty(playerIface, "PlaybackStatus", status); err != nil {
			p.logger.Warn("Failed to update playback status", zap.Error(err))
		}
		if err := conn.SetProperty(playerIface, "Metadata", meta); err != nil {
			p.logger.Warn("Failed to update metadata", zap.Error(err))
		}
	}

	changed := map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
		"Metadata":       dbus.MakeVariant(meta),
	}
	if err := conn.Emit(objectPath, changedSignal, playerIface, changed, []string{}); err != nil {
		p.logger.Warn("Failed to publish now playing", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	p.logger.Debug("Now playing published",
		zap.String("title", np.Title),
		zap.String("status", string(np.Status)))
}

// properties is the initial state of the exported MPRIS objects. Changes are
// announced by publish in a single signal, so no property emits on its own.
func properties() prop.Map {
	ro := func(v interface{}) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitFalse}
	}
	return prop.Map{
		rootIface: {
			"Identity":            ro(identity),
			"CanQuit":             ro(false),
			"CanRaise":            ro(false),
			"HasTrackList":        ro(false),
			"SupportedUriSchemes": ro([]string{"file"}),
			"SupportedMimeTypes":  ro([]string{}),
		},
		playerIface: {
			"PlaybackStatus": ro(string(domain.StatusStopped)),
			"Metadata":       ro(metadata(domain.NowPlaying{})),
			"Rate":           ro(1.0),
			"CanControl":     ro(false),
			"CanPlay":        ro(false),
			"CanPause":       ro(false),
			"CanSeek":        ro(false),
			"CanGoNext":      ro(false),
			"CanGoPrevious":  ro(false),
		},
	}
}

// metadata converts np to the xesam/mpris metadata dictionary
func metadata(np domain.NowPlaying) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{}
	if np.TrackID == "" {
		meta["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack"))
		return meta
	}

	meta["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath(trackPrefix + strings.ReplaceAll(np.TrackID, "-", "_")))
	meta["xesam:title"] = dbus.MakeVariant(np.Title)
	if np.Playlist != "" {
		meta["xesam:album"] = dbus.MakeVariant(np.Playlist)
	}
	if np.Length > 0 {
		meta["mpris:length"] = dbus.MakeVariant(int64(np.Length * 1e6))
	}
	return meta
}
