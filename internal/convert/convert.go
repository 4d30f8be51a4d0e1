package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

const (
	// convertedDir holds the mp3 copies under the data directory
	convertedDir = "mp3_converted"
	// maxJobs bounds concurrent ffmpeg conversions
	maxJobs = 2
)

// TrackRemover drops a track from its playlist
type TrackRemover interface {
	RemoveTrack(t *domain.Track) bool
}

// Converter turns video soundtracks and convertible audio into mp3 files the audio
// engine can seek in. Tracks stay pending while their conversion runs.
type Converter struct {
	logger   *zap.Logger
	ffmpeg   string
	dir      string
	remover  TrackRemover
	notifier domain.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewConverter creates a converter writing into the configured data directory
func NewConverter(logger *zap.Logger, cfg domain.Config, remover TrackRemover, notifier domain.Notifier) *Converter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Converter{
		logger:   logger,
		ffmpeg:   cfg.GetFFmpegPath(),
		dir:      filepath.Join(cfg.GetDataDir(), convertedDir),
		remover:  remover,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, maxJobs),
	}
}

// OutputPath is where the converted copy of t lives
func (c *Converter) OutputPath(t *domain.Track) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.mp3", t.Playlist, t.Stem()))
}

// Prepare resolves the audio path of a freshly loaded track. An existing converted
// copy is reused; otherwise a background conversion starts and the track is pending
// until it finishes. Plain audio marked as converted points at its copy.
func (c *Converter) Prepare(t *domain.Track) {
	out := c.OutputPath(t)

	switch t.Kind {
	case domain.KindPlainAudio:
		if t.Converted() {
			t.SetAudioPath(out)
		}
		return
	case domain.KindVideo, domain.KindConvertibleAudio:
	default:
		return
	}

	if _, err := os.Stat(out); err == nil {
		t.SetAudioPath(out)
		t.SetConverted(true)
		return
	}

	t.SetAudioPath(out)
	t.SetPending(true)

	c.wg.Add(1)
	go c.run(t, out)
}

// Wait blocks until every started conversion finished
func (c *Converter) Wait() {
	c.wg.Wait()
}

// Close cancels running conversions and waits for them
func (c *Converter) Close(ctx context.Context) error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Converter) run(t *domain.Track, out string) {
	defer c.wg.Done()

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-c.ctx.Done():
		c.fail(t, c.ctx.Err())
		return
	}

	c.logger.Info("Converting track",
		zap.String("source", t.RealPath),
		zap.String("output", out),
		zap.Stringer("kind", t.Kind))

	if err := c.transcode(c.ctx, t.RealPath, out); err != nil {
		c.fail(t, err)
		return
	}

	t.SetConverted(true)
	t.SetPending(false)
	c.logger.Info("Track converted", zap.String("output", out))
}

// transcode writes the audio stream of src to dst as mp3
func (c *Converter) transcode(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := dst + ".part"
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		"-f", "mp3",
		tmp,
	}

	cmd := exec.CommandContext(ctx, c.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ffmpeg conversion failed for %s: %w: %s", src, err, strings.TrimSpace(stderr.String()))
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move converted file: %w", err)
	}
	return nil
}

// fail falls back to the original file for convertible audio, and removes
// video tracks whose soundtrack could not be extracted
func (c *Converter) fail(t *domain.Track, err error) {
	c.logger.Error("Conversion failed", zap.String("source", t.RealPath), zap.Error(err))

	if t.Kind == domain.KindConvertibleAudio {
		t.SetAudioPath(t.RealPath)
		t.SetConverted(false)
		t.SetPending(false)
		c.notify("Could not convert music",
			fmt.Sprintf("Could not convert '%s' to MP3 due to external exception: '%v'.", t.RealPath, err))
		return
	}

	t.SetPending(false)
	if c.remover != nil {
		c.remover.RemoveTrack(t)
	}
	c.notify("Could not load music",
		fmt.Sprintf("Could not convert '%s' to audio format due to external exception: '%v'. Music will be removed.", t.RealPath, err))
}

func (c *Converter) notify(title, message string) {
	if c.notifier == nil || c.ctx.Err() != nil {
		return
	}
	if err := c.notifier.Notify(c.ctx, title, message); err != nil {
		c.logger.Warn("Failed to notify user", zap.Error(err))
	}
}
