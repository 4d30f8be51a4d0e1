package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

var errNotLoaded = errors.New("no file loaded")

// process is one ffplay run; it never outlives a Load, Pause, Seek or Stop
type process struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   chan struct{}
}

// FFplayEngine plays audio through an ffplay subprocess.
// ffplay cannot pause, seek or change volume at runtime, so those operations restart
// the process at the tracked position. An end event is emitted only when a process
// exits on its own.
type FFplayEngine struct {
	logger *zap.Logger
	binary string
	events chan domain.AudioEvent

	mu              sync.Mutex
	path            string
	volume          float64
	paused          bool
	offset          float64
	started         time.Time
	proc            *process
	closed          bool
	lastDropWarning time.Time
	wg              sync.WaitGroup
}

// NewFFplayEngine creates an engine using the ffplay binary from the configuration
func NewFFplayEngine(logger *zap.Logger, cfg domain.Config) *FFplayEngine {
	return &FFplayEngine{
		logger: logger,
		binary: cfg.GetFFplayPath(),
		events: make(chan domain.AudioEvent, 10),
		volume: 1,
	}
}

// Load prepares path and halts whatever was playing
func (e *FFplayEngine) Load(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("audio engine closed")
	}
	e.killLocked()
	e.path = path
	e.paused = false
	e.offset = 0
	return nil
}

// Play starts the loaded file at offset seconds
func (e *FFplayEngine) Play(offset float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.path == "" {
		return errNotLoaded
	}
	e.killLocked()
	e.paused = false
	return e.startLocked(offset)
}

// Pause stops the process and remembers the position
func (e *FFplayEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil || e.paused {
		return nil
	}
	e.offset = e.positionLocked()
	e.paused = true
	e.killLocked()
	return nil
}

// Unpause restarts at the remembered position
func (e *FFplayEngine) Unpause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused || e.path == "" {
		return nil
	}
	e.paused = false
	return e.startLocked(e.offset)
}

// Stop halts output and unloads the file
func (e *FFplayEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.killLocked()
	e.path = ""
	e.paused = false
	e.offset = 0
	return nil
}

// SetVolume stores volume and applies it by restarting a running process
func (e *FFplayEngine) SetVolume(volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	volume = math.Max(0, math.Min(1, volume))
	if volume == e.volume {
		return nil
	}
	e.volume = volume
	if e.proc == nil {
		return nil
	}
	pos := e.positionLocked()
	e.killLocked()
	return e.startLocked(pos)
}

// Seek moves playback to seconds; a paused engine resumes there later
func (e *FFplayEngine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.path == "" {
		return errNotLoaded
	}
	seconds = math.Max(0, seconds)
	if e.paused || e.proc == nil {
		e.offset = seconds
		return nil
	}
	e.killLocked()
	return e.startLocked(seconds)
}

// Events returns a read-only channel of end-of-track events
func (e *FFplayEngine) Events() <-chan domain.AudioEvent {
	return e.events
}

// Position returns the tracked playback position
func (e *FFplayEngine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// Close kills the running process, waits for its watcher and closes the event channel
func (e *FFplayEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.killLocked()
	e.mu.Unlock()

	// Watchers may still be emitting; wait before closing the channel
	e.wg.Wait()
	close(e.events)
	e.logger.Info("Audio engine shutdown complete")
	return nil
}

func (e *FFplayEngine) positionLocked() float64 {
	if e.proc == nil || e.paused {
		return e.offset
	}
	return e.offset + time.Since(e.started).Seconds()
}

func (e *FFplayEngine) startLocked(offset float64) error {
	if e.closed {
		return fmt.Errorf("audio engine closed")
	}

	cmd := exec.Command(e.binary, e.args(offset)...)
	stderr := new(bytes.Buffer)
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffplay: %w", err)
	}

	p := &process{cmd: cmd, stderr: stderr, done: make(chan struct{})}
	e.proc = p
	e.offset = offset
	e.started = time.Now()

	e.logger.Debug("ffplay started",
		zap.String("path", e.path),
		zap.Float64("offset", offset),
		zap.Int("pid", cmd.Process.Pid))

	e.wg.Add(1)
	go e.watch(p, e.path)
	return nil
}

func (e *FFplayEngine) args(offset float64) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-volume", strconv.Itoa(int(math.Round(e.volume * 100))),
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		e.path,
	}
}

// killLocked stops the current process and waits until its watcher saw the exit
func (e *FFplayEngine) killLocked() {
	p := e.proc
	if p == nil {
		return
	}
	e.proc = nil
	if err := p.cmd.Process.Kill(); err != nil {
		e.logger.Debug("ffplay already exited", zap.Error(err))
	}
	<-p.done
}

// watch waits for p to exit and reports a natural end of the track
func (e *FFplayEngine) watch(p *process, path string) {
	defer e.wg.Done()

	err := p.cmd.Wait()
	close(p.done)

	e.mu.Lock()
	current := e.proc == p
	if current {
		e.proc = nil
		e.offset = 0
	}
	e.mu.Unlock()

	if !current {
		return
	}
	if err != nil {
		e.logger.Warn("ffplay exited with error",
			zap.String("path", path),
			zap.String("stderr", strings.TrimSpace(p.stderr.String())),
			zap.Error(err))
	}

	select {
	case e.events <- domain.AudioEvent{Kind: domain.AudioTrackEnded, Path: path}:
	default:
		e.logChannelFullWarning()
	}
}

// logChannelFullWarning logs at most one dropped-event warning per interval
func (e *FFplayEngine) logChannelFullWarning() {
	e.mu.Lock()
	defer e.mu.Unlock()

	const warningInterval = 5 * time.Second
	now := time.Now()
	if now.Sub(e.lastDropWarning) >= warningInterval {
		e.logger.Warn("Audio events channel full, dropping end-of-track event")
		e.lastDropWarning = now
	}
}
