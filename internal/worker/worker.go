package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/genricoloni/reelplay/internal/processor"
	"go.uber.org/zap"
)

const (
	// idleRate is the loop frequency while there is nothing to decode
	idleRate = 10.0
	// fpsHeadroom lets the decoder run slightly above the source rate
	fpsHeadroom      = 5.0
	defaultFramerate = 60.0
	warningInterval  = 5 * time.Second
)

// Worker serves the latest decoded and resized frame of one media file.
//
// Requests (SetTime, SetActive, RequestOutputSizes) may come from any goroutine and are
// last-write-wins. The decode step, the frame source and the resize cache belong to
// whoever runs the loop body: the worker goroutine in Threaded mode, the Step caller in
// Cooperative mode. Outputs are published as immutable snapshots.
type Worker struct {
	logger *zap.Logger
	path   string
	opener domain.SourceOpener

	lifecycle atomic.Int32
	mode      Mode
	alive     atomic.Bool
	active    atomic.Bool
	open      atomic.Bool

	reqMu     sync.Mutex
	reqTime   float64
	hasTime   bool
	reqSizes  []domain.Size
	framerate float64

	snapshot atomic.Pointer[domain.Snapshot]

	errMu   sync.Mutex
	openErr error

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	stopOnce sync.Once
	spawned  atomic.Bool
	done     chan struct{}

	// owned by the loop runner
	source    domain.FrameSource
	attempted bool
	released  bool
	cache     *processor.ResizeCache
	seq       uint64
	lastRaw   image.Image
	lastTime  float64
	lastWarn  time.Time

	iterations     atomic.Uint64
	idles          atomic.Uint64
	decodes        atomic.Uint64
	decodeFailures atomic.Uint64
	reuses         atomic.Uint64
}

// New creates a worker for path. The source is opened lazily by the first loop iteration.
func New(logger *zap.Logger, opener domain.SourceOpener, path string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		logger:    logger.With(zap.String("video", path)),
		path:      path,
		opener:    opener,
		framerate: defaultFramerate,
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}),
		done:      make(chan struct{}),
		cache:     processor.NewResizeCache(imaging.Linear),
	}
	w.alive.Store(true)
	return w
}

// Path returns the media file this worker decodes
func (w *Worker) Path() string {
	return w.path
}

// Mode returns the mode passed to Start
func (w *Worker) Mode() Mode {
	return w.mode
}

// Lifecycle returns the current state machine position
func (w *Worker) Lifecycle() Lifecycle {
	return Lifecycle(w.lifecycle.Load())
}

func (w *Worker) transition(from, to Lifecycle) bool {
	return w.lifecycle.CompareAndSwap(int32(from), int32(to))
}

// Start begins serving frames. In Threaded mode the loop runs on its own goroutine until
// Stop; in Cooperative mode the caller must invoke Step once per tick.
func (w *Worker) Start(mode Mode) error {
	if !w.transition(Idle, Starting) {
		return fmt.Errorf("%w: start from %s", domain.ErrLifecycle, w.Lifecycle())
	}
	w.mode = mode

	w.logger.Debug("Frame worker starting", zap.Stringer("mode", mode))

	if mode == Cooperative {
		w.transition(Starting, Running)
		return nil
	}

	w.spawned.Store(true)
	go w.loop()
	return nil
}

// Step runs a single loop iteration on the calling goroutine (Cooperative mode only)
func (w *Worker) Step() error {
	if w.mode != Cooperative || w.Lifecycle() != Running {
		return fmt.Errorf("%w: step in %s mode while %s", domain.ErrLifecycle, w.mode, w.Lifecycle())
	}
	if !w.alive.Load() {
		return nil
	}
	w.step()
	return nil
}

// Stop asks the loop to exit. Join must follow before the worker counts as stopped.
func (w *Worker) Stop() {
	w.alive.Store(false)
	w.active.Store(false)
	for {
		cur := w.Lifecycle()
		if cur == Stopping || cur == Joined {
			break
		}
		if w.transition(cur, Stopping) {
			break
		}
	}
	w.stopOnce.Do(func() {
		w.cancel()
		close(w.wake)
	})
}

// Join blocks until the loop has exited and the source is released.
// It returns ErrLifecycle when called before Stop.
func (w *Worker) Join() error {
	switch w.Lifecycle() {
	case Joined:
		return nil
	case Stopping:
	default:
		return fmt.Errorf("%w: join while %s", domain.ErrLifecycle, w.Lifecycle())
	}

	if w.spawned.Load() {
		<-w.done
	} else {
		w.release()
	}

	w.lifecycle.Store(int32(Joined))
	w.logger.Debug("Frame worker joined", zap.Any("stats", w.Stats()))
	return nil
}

// SetTime records the timestamp to decode next, replacing any unconsumed value
func (w *Worker) SetTime(timestamp float64) {
	w.reqMu.Lock()
	w.reqTime = timestamp
	w.hasTime = true
	w.reqMu.Unlock()
}

// SetActive toggles decoding; an inactive worker idles at a low rate
func (w *Worker) SetActive(active bool) {
	if active && !w.alive.Load() {
		return
	}
	w.active.Store(active)
}

// SetFramerate caps the decode rate to what the display can show
func (w *Worker) SetFramerate(fps float64) {
	if fps <= 0 || math.IsNaN(fps) {
		return
	}
	w.reqMu.Lock()
	w.framerate = fps
	w.reqMu.Unlock()
}

// RequestOutputSizes replaces the set of sizes the consumer wants scaled copies for
func (w *Worker) RequestOutputSizes(sizes []domain.Size) {
	cp := make([]domain.Size, len(sizes))
	copy(cp, sizes)
	w.reqMu.Lock()
	w.reqSizes = cp
	w.reqMu.Unlock()
}

// Latest returns the most recent snapshot, nil before the first decode
func (w *Worker) Latest() *domain.Snapshot {
	return w.snapshot.Load()
}

// LatestOutput returns the full resolution frame, nil if nothing was decoded
func (w *Worker) LatestOutput() image.Image {
	if s := w.snapshot.Load(); s != nil {
		return s.Raw
	}
	return nil
}

// LatestSmallOutput returns the smallest requested scaled copy, nil if none
func (w *Worker) LatestSmallOutput() image.Image {
	if s := w.snapshot.Load(); s != nil {
		return s.Small
	}
	return nil
}

// Err returns the open error that killed the worker, if any
func (w *Worker) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.openErr
}

// Alive reports whether the loop keeps iterating
func (w *Worker) Alive() bool {
	return w.alive.Load()
}

// State returns a copy of the worker flags
func (w *Worker) State() State {
	return State{
		Alive:      w.alive.Load(),
		Active:     w.active.Load(),
		SourceOpen: w.open.Load(),
		Lifecycle:  w.Lifecycle(),
	}
}

// Stats returns loop counters
func (w *Worker) Stats() Stats {
	return Stats{
		Iterations:     w.iterations.Load(),
		Idles:          w.idles.Load(),
		Decodes:        w.decodes.Load(),
		DecodeFailures: w.decodeFailures.Load(),
		Reuses:         w.reuses.Load(),
	}
}

type request struct {
	time      float64
	hasTime   bool
	sizes     []domain.Size
	framerate float64
}

func (w *Worker) request() request {
	w.reqMu.Lock()
	defer w.reqMu.Unlock()
	return request{
		time:      w.reqTime,
		hasTime:   w.hasTime,
		sizes:     w.reqSizes,
		framerate: w.framerate,
	}
}

// step is the loop body shared by both modes. It returns how long the runner should
// wait before the next iteration.
func (w *Worker) step() time.Duration {
	w.iterations.Add(1)

	if !w.attempted {
		w.openSource()
	}
	if !w.alive.Load() {
		return 0
	}

	req := w.request()
	if !w.active.Load() || w.source == nil || !req.hasTime {
		w.idles.Add(1)
		return rateInterval(idleRate)
	}

	interval := rateInterval(math.Min(w.source.FPS()+fpsHeadroom, req.framerate))

	raw, ok := w.decode(req.time)
	if !ok {
		return interval
	}

	// 2. Resize to every requested rectangle and publish in one swap
	scaled, small := w.cache.Scale(w.seq, raw, req.sizes)
	w.snapshot.Store(&domain.Snapshot{
		Raw:       raw,
		Scaled:    scaled,
		Small:     small,
		Timestamp: req.time,
		Seq:       w.seq,
	})

	return interval
}

// decode returns the frame at timestamp, reusing the previous frame when the
// playhead did not move
func (w *Worker) decode(timestamp float64) (image.Image, bool) {
	if w.lastRaw != nil && w.lastTime == timestamp {
		w.reuses.Add(1)
		return w.lastRaw, true
	}

	// 1. Decode the frame under the playhead
	raw, err := w.source.FrameAt(timestamp)
	if err != nil {
		w.decodeFailures.Add(1)
		w.logDecodeFailure(timestamp, err)
		return nil, false
	}

	w.decodes.Add(1)
	w.seq++
	w.lastRaw = raw
	w.lastTime = timestamp
	return raw, true
}

func (w *Worker) openSource() {
	w.attempted = true

	src, err := w.opener.Open(w.ctx, w.path)

	// Stop may have raced with a slow open
	if !w.alive.Load() {
		if src != nil {
			if err := src.Close(); err != nil {
				w.logger.Warn("Failed to close frame source", zap.Error(err))
			}
		}
		return
	}

	if err != nil {
		if !errors.Is(err, domain.ErrOpen) {
			err = fmt.Errorf("%w: %w", domain.ErrOpen, err)
		}
		w.errMu.Lock()
		w.openErr = err
		w.errMu.Unlock()
		w.alive.Store(false)
		w.active.Store(false)
		w.logger.Error("Failed to open video, frame worker stopped", zap.Error(err))
		return
	}

	w.source = src
	w.open.Store(true)
}

// release closes the source; only the loop runner calls it
func (w *Worker) release() {
	if w.released {
		return
	}
	w.released = true

	if w.source != nil {
		if err := w.source.Close(); err != nil {
			w.logger.Warn("Failed to close frame source", zap.Error(err))
		}
		w.source = nil
	}
	w.open.Store(false)
	w.lastRaw = nil
}

// loop runs the threaded mode until Stop
func (w *Worker) loop() {
	defer close(w.done)
	defer w.release()

	w.transition(Starting, Running)
	w.logger.Debug("Frame worker goroutine started")

	for w.alive.Load() {
		began := time.Now()
		pause := w.step()

		wait := pause - time.Since(began)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-w.wake:
			timer.Stop()
		case <-timer.C:
		}
	}

	w.logger.Debug("Frame worker goroutine exiting")
}

// logDecodeFailure logs every failure at debug and at most one warning per interval
func (w *Worker) logDecodeFailure(timestamp float64, err error) {
	w.logger.Debug("Frame decode failed", zap.Float64("timestamp", timestamp), zap.Error(err))

	now := time.Now()
	if now.Sub(w.lastWarn) >= warningInterval {
		w.logger.Warn("Dropping frames that failed to decode",
			zap.Float64("timestamp", timestamp),
			zap.Uint64("failures", w.decodeFailures.Load()),
			zap.Error(err))
		w.lastWarn = now
	}
}

func rateInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = idleRate
	}
	return time.Duration(float64(time.Second) / hz)
}
