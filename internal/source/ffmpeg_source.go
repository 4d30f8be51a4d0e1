package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

// Opener creates ffmpeg backed frame sources
type Opener struct {
	logger     *zap.Logger
	ffmpegPath string
	prober     *Prober
}

// NewOpener creates an opener from the configured binaries
func NewOpener(logger *zap.Logger, cfg domain.Config) *Opener {
	return &Opener{
		logger:     logger,
		ffmpegPath: cfg.GetFFmpegPath(),
		prober:     NewProber(logger, cfg.GetFFprobePath()),
	}
}

// Open probes the file; any failure is reported as domain.ErrOpen
func (o *Opener) Open(ctx context.Context, path string) (domain.FrameSource, error) {
	info, err := o.prober.probeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrOpen, path, err)
	}

	srcCtx, cancel := context.WithCancel(context.Background())
	src := &FFmpegSource{
		logger:     o.logger.With(zap.String("source", path)),
		ffmpegPath: o.ffmpegPath,
		path:       path,
		info:       info,
		ctx:        srcCtx,
		cancel:     cancel,
	}

	o.logger.Info("Frame source opened",
		zap.String("path", path),
		zap.Int("width", info.width),
		zap.Int("height", info.height),
		zap.Float64("fps", info.fps),
		zap.Float64("duration", info.duration))

	return src, nil
}

// FFmpegSource decodes single frames by seeking with an ffmpeg subprocess
type FFmpegSource struct {
	logger     *zap.Logger
	ffmpegPath string
	path       string
	info       videoInfo
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
}

// FrameAt decodes the frame shown at timestamp seconds
func (s *FFmpegSource) FrameAt(timestamp float64) (image.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: source closed", domain.ErrDecode)
	}
	if math.IsNaN(timestamp) || timestamp < 0 || timestamp >= s.info.duration {
		return nil, fmt.Errorf("%w: timestamp %.3f outside [0, %.3f)", domain.ErrDecode, timestamp, s.info.duration)
	}

	args := []string{
		"-v", "error",
		"-noautorotate",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}

	cmd := exec.CommandContext(s.ctx, s.ffmpegPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg at %.3f: %w (stderr: %s)", domain.ErrDecode, timestamp, err, strings.TrimSpace(stderr.String()))
	}

	w, h := s.info.width, s.info.height
	want := w * h * 4
	if out.Len() < want {
		return nil, fmt.Errorf("%w: short frame at %.3f: got %d bytes, want %d", domain.ErrDecode, timestamp, out.Len(), want)
	}

	return &image.NRGBA{
		Pix:    out.Bytes()[:want],
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// Duration returns the probed length in seconds
func (s *FFmpegSource) Duration() float64 {
	return s.info.duration
}

// FPS returns the probed frame rate
func (s *FFmpegSource) FPS() float64 {
	return s.info.fps
}

// Size returns the frame dimensions
func (s *FFmpegSource) Size() domain.Size {
	return domain.Size{Width: s.info.width, Height: s.info.height}
}

// Close cancels any running decode; safe to call more than once
func (s *FFmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.logger.Debug("Frame source closed")
	return nil
}
