package playback

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/history"
	"github.com/genricoloni/reelplay/internal/processor"
	"github.com/genricoloni/reelplay/internal/worker"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// SeekStep is the jump used by the forward and backward controls
	SeekStep = 5.0
	// endOvershoot triggers auto-advance when the position runs past the end
	// without the audio engine reporting it
	endOvershoot = 1.01
)

var errClosed = errors.New("playback coordinator closed")

// Status is a copy of the transport state
type Status struct {
	Track    *domain.Track
	Index    int
	Paused   bool
	Position float64
	Volume   float64
	Flags    Flags
	Worker   *worker.State
}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithClock replaces the wall clock used for position math
func WithClock(clock domain.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithRandom replaces the shuffle random source; intn must return a value in [0, n)
func WithRandom(intn func(n int) int) Option {
	return func(c *Coordinator) { c.intn = intn }
}

// WithFileCheck replaces the existence check run before playing a file
func WithFileCheck(exists func(path string) bool) Option {
	return func(c *Coordinator) { c.exists = exists }
}

// Coordinator owns the current track, maps wall-clock time to position and ties the
// frame worker lifecycle to track changes. At most one worker exists at any time: the
// previous one is stopped and joined before a new one starts.
type Coordinator struct {
	logger    *zap.Logger
	settings  domain.Settings
	audio     domain.AudioEngine
	opener    domain.SourceOpener
	prober    domain.DurationProber
	playlists domain.PlaylistStore
	history   *history.History
	notifier  domain.Notifier
	presence  domain.Presence
	backdrop  *processor.Backdrop
	clock     domain.Clock
	intn      func(n int) int
	exists    func(path string) bool

	mu        sync.Mutex
	track     *domain.Track
	index     int
	paused    bool
	offset    float64
	resumedAt time.Time
	volume    float64
	flags     Flags
	closed    bool

	worker    *worker.Worker
	lastFrame *domain.Snapshot
	refresh   bool
	reported  bool

	probeMu sync.Mutex
	probing map[uuid.UUID]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates an idle coordinator
func NewCoordinator(
	logger *zap.Logger,
	settings domain.Settings,
	audio domain.AudioEngine,
	opener domain.SourceOpener,
	prober domain.DurationProber,
	playlists domain.PlaylistStore,
	hist *history.History,
	notifier domain.Notifier,
	presence domain.Presence,
	opts ...Option,
) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		logger:    logger,
		settings:  settings,
		audio:     audio,
		opener:    opener,
		prober:    prober,
		playlists: playlists,
		history:   hist,
		notifier:  notifier,
		presence:  presence,
		backdrop:  processor.NewBackdrop(logger),
		clock:     domain.SystemClock{},
		intn:      rand.Intn,
		exists:    fileExists,
		volume:    1,
		index:     -1,
		probing:   make(map[uuid.UUID]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play makes track the current one. A pending track stops playback instead.
// A missing file is removed from its playlist and reported with ErrMissingFile.
// Another current track keeps playing; if the missing file is the current track,
// playback stops.
func (c *Coordinator) Play(track *domain.Track, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(track, index)
}

func (c *Coordinator) playLocked(track *domain.Track, index int) error {
	if c.closed {
		return errClosed
	}

	// 1. Pending tracks cannot be played
	if track.Pending() {
		c.logger.Info("Track is still converting, stopping playback",
			zap.String("track", track.RealPath))
		return c.stopLocked()
	}

	// 2. Tear down the previous worker before anything else touches frames
	if err := c.stopWorkerLocked(); err != nil {
		c.logger.Warn("Failed to join frame worker", zap.Error(err))
	}
	if c.track != nil {
		c.recordHistoryLocked()
	}

	// 3. The audio file may have vanished since the playlist was loaded
	audioPath := track.AudioPath()
	if !c.exists(audioPath) {
		if pl, ok := c.playlists.Playlist(track.Playlist); ok {
			pl.Remove(audioPath)
		}
		c.logger.Warn("Track file missing, removed from playlist",
			zap.String("path", audioPath),
			zap.String("playlist", track.Playlist))
		c.notify("Failed playing music",
			"The requested music was renamed or deleted externally, therefore the path was removed from the playlist.")

		switch {
		case track == c.track:
			// Nothing is left to play
			if err := c.stopLocked(); err != nil {
				c.logger.Warn("Failed to stop after missing file", zap.Error(err))
			}
			if c.history != nil {
				c.history.Remove(track)
			}
		case c.track != nil && c.track.IsVideo():
			c.startWorkerLocked(c.track)
		}
		return fmt.Errorf("%w: %s", domain.ErrMissingFile, audioPath)
	}

	// 4. Reset the clock and cache the duration in the background
	c.track = track
	c.index = index
	c.paused = false
	c.offset = 0
	c.resumedAt = c.clock.Now()
	c.lastFrame = nil
	c.refresh = false
	if track.Duration().State == domain.DurationNotCached {
		c.probeDuration(track)
	}

	// 5. Video tracks get a fresh worker
	if track.IsVideo() {
		c.startWorkerLocked(track)
	}

	// 6. Hand the soundtrack to the audio engine
	if err := c.startAudioLocked(audioPath); err != nil {
		c.logger.Error("Failed to start audio", zap.String("path", audioPath), zap.Error(err))
		c.notify("Failed playing music", fmt.Sprintf("Could not play '%s': %v.", track.RealPath, err))
		if stopErr := c.stopWorkerLocked(); stopErr != nil {
			err = multierr.Append(err, stopErr)
		}
		c.track = nil
		c.index = -1
		c.publishLocked()
		return fmt.Errorf("failed to start audio: %w", err)
	}
	c.resumedAt = c.clock.Now()

	c.logger.Info("Playing",
		zap.String("track", track.RealPath),
		zap.Stringer("kind", track.Kind),
		zap.Int("index", index))
	c.publishLocked()
	return nil
}

func (c *Coordinator) startAudioLocked(path string) error {
	if err := c.audio.Load(path); err != nil {
		return err
	}
	if err := c.audio.Play(0); err != nil {
		return err
	}
	return c.audio.SetVolume(c.volume)
}

// Stop ends playback, records the resume position and clears the current track
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Coordinator) stopLocked() error {
	var err error
	if stopErr := c.stopWorkerLocked(); stopErr != nil {
		err = multierr.Append(err, stopErr)
	}
	if c.track != nil {
		c.recordHistoryLocked()
		c.logger.Info("Playback stopped", zap.String("track", c.track.RealPath))
	}
	c.track = nil
	c.index = -1
	c.paused = false
	c.offset = 0
	c.lastFrame = nil
	c.refresh = false
	if audioErr := c.audio.Stop(); audioErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop audio: %w", audioErr))
	}
	c.publishLocked()
	return err
}

// Position returns the playback position in seconds
func (c *Coordinator) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Coordinator) positionLocked() float64 {
	if c.track == nil {
		return 0
	}
	if c.paused {
		return c.offset
	}
	return c.offset + c.clock.Now().Sub(c.resumedAt).Seconds()
}

// SetPosition moves playback to seconds. It returns ErrUnsupportedSeek, leaving the
// position untouched, when the format cannot seek or the duration is unknown.
func (c *Coordinator) SetPosition(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPositionLocked(seconds)
}

func (c *Coordinator) setPositionLocked(seconds float64) error {
	if c.track == nil {
		return domain.ErrNotPlaying
	}
	d := c.track.Duration()
	if !c.track.PosSupported() || !d.Known() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedSeek, c.track.RealPath)
	}
	if math.IsNaN(seconds) {
		return fmt.Errorf("%w: NaN position", domain.ErrUnsupportedSeek)
	}

	seconds = clamp(seconds, 0, d.Seconds)
	c.offset = seconds
	c.resumedAt = c.clock.Now()
	if c.paused {
		c.refresh = true
	}
	if err := c.audio.Seek(seconds); err != nil {
		return fmt.Errorf("failed to seek audio: %w", err)
	}
	return nil
}

// Seek moves the position by delta seconds. Reaching the end skips to the next track.
func (c *Coordinator) Seek(delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track == nil {
		return domain.ErrNotPlaying
	}
	d := c.track.Duration()
	if !c.track.PosSupported() || !d.Known() {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedSeek, c.track.RealPath)
	}

	pos := clamp(c.positionLocked()+delta, 0, d.Seconds)
	if pos >= d.Seconds {
		return c.skipNextLocked(false, false)
	}
	return c.setPositionLocked(pos)
}

// TogglePause pauses or resumes playback
func (c *Coordinator) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track == nil {
		return domain.ErrNotPlaying
	}

	if c.paused {
		if err := c.audio.Unpause(); err != nil {
			return fmt.Errorf("failed to resume audio: %w", err)
		}
		c.paused = false
		c.resumedAt = c.clock.Now()
	} else {
		pos := c.positionLocked()
		if err := c.audio.Pause(); err != nil {
			return fmt.Errorf("failed to pause audio: %w", err)
		}
		c.offset = pos
		c.paused = true
	}
	c.publishLocked()
	return nil
}

// SkipNext plays the following track. At the end of the playlist it wraps when
// considerLoop is set and playlist looping is on, stops when stopIfEnd is set,
// and does nothing otherwise.
func (c *Coordinator) SkipNext(stopIfEnd, considerLoop bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipNextLocked(stopIfEnd, considerLoop)
}

func (c *Coordinator) skipNextLocked(stopIfEnd, considerLoop bool) error {
	if c.track == nil {
		return domain.ErrNotPlaying
	}

	length := 0
	pl, ok := c.playlists.Playlist(c.track.Playlist)
	if ok {
		length = pl.Len()
	}

	next := c.index + 1
	if next >= length {
		if !(considerLoop && c.flags.LoopPlaylist && length > 0) {
			if stopIfEnd {
				return c.stopLocked()
			}
			return nil
		}
		next = 0
	}

	track, ok := pl.At(next)
	if !ok {
		return nil
	}
	return c.playLocked(track, next)
}

// SkipPrevious plays the preceding track; nothing happens on the first one
func (c *Coordinator) SkipPrevious() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track == nil {
		return domain.ErrNotPlaying
	}
	pl, ok := c.playlists.Playlist(c.track.Playlist)
	if !ok {
		return nil
	}
	track, ok := pl.At(c.index - 1)
	if !ok {
		return nil
	}
	return c.playLocked(track, c.index-1)
}

// Resume plays track from the position saved in the history. Formats without
// position support, or tracks of unknown duration, start from the beginning.
func (c *Coordinator) Resume(track *domain.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		pos   float64
		saved bool
	)
	if c.history != nil {
		pos, saved = c.history.Resume(track)
	}

	index := -1
	if pl, ok := c.playlists.Playlist(track.Playlist); ok {
		index = pl.Index(track)
	}
	if err := c.playLocked(track, index); err != nil {
		return err
	}
	if !saved || pos <= 0 || c.track != track {
		return nil
	}
	if !track.PosSupported() || !track.Duration().Known() {
		c.logger.Debug("Resuming from the start, position unavailable",
			zap.String("track", track.RealPath),
			zap.Float64("saved", pos))
		return nil
	}
	return c.setPositionLocked(pos)
}

// Rewind restarts the current track
func (c *Coordinator) Rewind() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track == nil {
		return domain.ErrNotPlaying
	}
	return c.playLocked(c.track, c.index)
}

// HandleAudioEvent reacts to events from the audio engine
func (c *Coordinator) HandleAudioEvent(ev domain.AudioEvent) {
	if ev.Kind != domain.AudioTrackEnded {
		return
	}
	if err := c.TrackEnded(ev.Path); err != nil {
		c.logger.Warn("Auto-advance failed", zap.Error(err))
	}
}

// TrackEnded runs auto-advance when path is the current audio file.
// Events for files that are no longer current are ignored.
func (c *Coordinator) TrackEnded(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track == nil {
		return nil
	}
	if path != "" && path != c.track.AudioPath() {
		c.logger.Debug("Ignoring end event of a previous track", zap.String("path", path))
		return nil
	}
	return c.advanceLocked()
}

func (c *Coordinator) advanceLocked() error {
	length, others := 0, 0
	pl, ok := c.playlists.Playlist(c.track.Playlist)
	if ok {
		length = pl.Len()
		others = length
		if pl.Index(c.track) >= 0 {
			others--
		}
	}

	action := NextAction(c.flags, c.index, length, others)
	c.logger.Debug("Track finished", zap.Stringer("action", action), zap.Int("index", c.index))

	var (
		next  *domain.Track
		index = -1
	)
	switch action {
	case ActionRepeat:
		next, index = c.track, c.index
	case ActionShuffle:
		next, index = c.pickShuffleLocked(pl)
	case ActionNext:
		if track, ok := pl.At(c.index + 1); ok {
			next, index = track, c.index+1
		}
	case ActionWrap:
		if track, ok := pl.At(0); ok {
			next, index = track, 0
		}
	}
	if next == nil {
		return c.stopLocked()
	}

	err := c.playLocked(next, index)
	if errors.Is(err, domain.ErrMissingFile) && c.track != nil {
		// The finished track must not stay current
		return multierr.Append(err, c.stopLocked())
	}
	return err
}

// pickShuffleLocked draws uniformly among the playlist tracks other than the current one
func (c *Coordinator) pickShuffleLocked(pl domain.TrackList) (*domain.Track, int) {
	candidates := make([]int, 0, pl.Len())
	for i := 0; i < pl.Len(); i++ {
		if t, ok := pl.At(i); ok && t != c.track {
			candidates = append(candidates, i)
		}
	}
	index := candidates[c.intn(len(candidates))]
	track, _ := pl.At(index)
	return track, index
}

// SetVolume sets the output volume, clamped to [0, 1]
func (c *Coordinator) SetVolume(volume float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = clamp(volume, 0, 1)
	if c.track == nil {
		return nil
	}
	return c.audio.SetVolume(c.volume)
}

// SetLoopTrack toggles replaying the current track
func (c *Coordinator) SetLoopTrack(v bool) {
	c.mu.Lock()
	c.flags.LoopTrack = v
	c.mu.Unlock()
}

// SetShuffle toggles random order
func (c *Coordinator) SetShuffle(v bool) {
	c.mu.Lock()
	c.flags.Shuffle = v
	c.mu.Unlock()
}

// SetLoopPlaylist toggles wrapping at the end of the playlist
func (c *Coordinator) SetLoopPlaylist(v bool) {
	c.mu.Lock()
	c.flags.LoopPlaylist = v
	c.mu.Unlock()
}

// SetThreaded switches decoding mode. A running worker is stopped, joined and
// replaced by one in the new mode.
func (c *Coordinator) SetThreaded(threaded bool) error {
	c.settings.SetThreaded(threaded)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil || c.track == nil || c.worker.Mode() == modeFor(threaded) {
		return nil
	}
	err := c.stopWorkerLocked()
	c.startWorkerLocked(c.track)
	return err
}

// Status returns a copy of the transport state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Track:    c.track,
		Index:    c.index,
		Paused:   c.paused,
		Position: c.positionLocked(),
		Volume:   c.volume,
		Flags:    c.flags,
	}
	if c.worker != nil {
		ws := c.worker.State()
		st.Worker = &ws
	}
	return st
}

// BeginFrame runs at the start of every UI tick. The worker is parked until a
// consumer asks for frames again, and a position that ran past the end triggers
// auto-advance.
func (c *Coordinator) BeginFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker != nil {
		c.worker.SetActive(false)
		c.reportWorkerErrorLocked()
	}

	if c.track == nil || c.paused {
		return
	}
	d := c.track.Duration()
	if d.Known() && d.Seconds > 0 && c.positionLocked()/d.Seconds > endOvershoot {
		if err := c.advanceLocked(); err != nil {
			c.logger.Warn("Auto-advance failed", zap.Error(err))
		}
	}
}

// VideoFrame returns the view for this tick. When the request has visible sizes the
// worker is reactivated at the current position (or the hover preview position).
func (c *Coordinator) VideoFrame(req domain.FrameRequest) domain.FrameView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := domain.FrameView{
		Track:    c.track,
		Position: c.positionLocked(),
		Paused:   c.paused,
	}
	w := c.worker
	if w == nil || c.track == nil || !req.Focused {
		return view
	}
	d := c.track.Duration()
	if !d.Known() {
		return view
	}
	if c.paused && req.HoverPosition == nil && !c.refresh {
		view.Frame = c.lastFrame
		return view
	}

	pos := view.Position
	if req.HoverPosition != nil {
		pos = *req.HoverPosition
	}
	if pos >= d.Seconds {
		view.Ended = true
		return view
	}

	w.SetActive(true)
	w.SetTime(pos)
	w.SetFramerate(c.settings.TargetFramerate())
	w.RequestOutputSizes(req.Sizes)
	if w.Mode() == worker.Cooperative {
		if err := w.Step(); err != nil {
			c.logger.Debug("Frame worker step rejected", zap.Error(err))
		}
	}
	c.reportWorkerErrorLocked()

	snap := w.Latest()
	view.Frame = snap
	if snap != nil {
		c.lastFrame = snap
		if c.refresh && snap.Timestamp == pos {
			c.refresh = false
		}
	}
	return view
}

// Backdrop returns the tint derived from the latest frame, preferring the small output
func (c *Coordinator) Backdrop() (color.NRGBA, bool) {
	c.mu.Lock()
	snap := c.lastFrame
	c.mu.Unlock()

	if snap == nil {
		return color.NRGBA{}, false
	}
	img := snap.Small
	if img == nil {
		img = snap.Raw
	}
	tint, err := c.backdrop.Tint(img)
	if err != nil {
		c.logger.Debug("Failed to compute backdrop tint", zap.Error(err))
		return color.NRGBA{}, false
	}
	return tint, true
}

// Close stops playback, waits for background probes and notifications and
// returns every teardown error
func (c *Coordinator) Close() error {
	c.mu.Lock()
	var err error
	if !c.closed {
		if c.track != nil {
			err = multierr.Append(err, c.stopLocked())
		} else {
			err = multierr.Append(err, c.stopWorkerLocked())
		}
		c.closed = true
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return err
}

func (c *Coordinator) startWorkerLocked(track *domain.Track) {
	mode := modeFor(c.settings.Threaded())
	w := worker.New(c.logger, c.opener, track.RealPath)
	w.SetFramerate(c.settings.TargetFramerate())
	if err := w.Start(mode); err != nil {
		c.logger.Error("Failed to start frame worker", zap.Error(err))
		return
	}
	c.worker = w
	c.reported = false
}

// stopWorkerLocked stops and joins the current worker; the next worker may only
// start after it returns
func (c *Coordinator) stopWorkerLocked() error {
	if c.worker == nil {
		return nil
	}
	w := c.worker
	c.worker = nil
	w.Stop()
	if err := w.Join(); err != nil {
		return fmt.Errorf("failed to join frame worker: %w", err)
	}
	return nil
}

func (c *Coordinator) reportWorkerErrorLocked() {
	if c.reported || c.worker == nil {
		return
	}
	if err := c.worker.Err(); err != nil {
		c.reported = true
		c.notify("Could not play video",
			fmt.Sprintf("Could not decode video frames of '%s': %v. Audio keeps playing.", c.worker.Path(), err))
	}
}

func (c *Coordinator) recordHistoryLocked() {
	if c.history == nil {
		return
	}
	c.history.Add(c.track, c.positionLocked(), c.track.Duration(), c.clock.Now())
}

func (c *Coordinator) probeDuration(track *domain.Track) {
	c.probeMu.Lock()
	if c.probing[track.ID] {
		c.probeMu.Unlock()
		return
	}
	c.probing[track.ID] = true
	c.probeMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.probeMu.Lock()
			delete(c.probing, track.ID)
			c.probeMu.Unlock()
		}()

		seconds, err := c.prober.Duration(c.ctx, track.AudioPath())
		if err != nil {
			c.logger.Warn("Failed to probe duration", zap.String("path", track.AudioPath()), zap.Error(err))
			track.SetDuration(domain.Duration{State: domain.DurationUnavailable})
			return
		}
		track.SetDuration(domain.KnownDuration(seconds))
		c.logger.Debug("Duration cached", zap.String("path", track.AudioPath()), zap.Float64("seconds", seconds))

		c.mu.Lock()
		if c.track == track {
			c.publishLocked()
		}
		c.mu.Unlock()
	}()
}

// notify shows a message without blocking the caller
func (c *Coordinator) notify(title, message string) {
	if c.notifier == nil || c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.notifier.Notify(c.ctx, title, message); err != nil {
			c.logger.Warn("Failed to notify user", zap.String("title", title), zap.Error(err))
		}
	}()
}

func (c *Coordinator) publishLocked() {
	if c.presence == nil {
		return
	}
	np := domain.NowPlaying{Status: domain.StatusStopped}
	if c.track != nil {
		np.TrackID = c.track.ID.String()
		np.Title = c.track.Stem()
		np.Playlist = c.track.Playlist
		if d := c.track.Duration(); d.Known() {
			np.Length = d.Seconds
		}
		np.Status = domain.StatusPlaying
		if c.paused {
			np.Status = domain.StatusPaused
		}
	}
	c.presence.Update(np)
}

func modeFor(threaded bool) worker.Mode {
	if threaded {
		return worker.Threaded
	}
	return worker.Cooperative
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
