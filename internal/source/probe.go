package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// probeResult is the subset of `ffprobe -of json` output the player needs
type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Prober runs ffprobe to read stream metadata
type Prober struct {
	logger      *zap.Logger
	ffprobePath string
}

// NewProber creates a prober using the given ffprobe binary
func NewProber(logger *zap.Logger, ffprobePath string) *Prober {
	return &Prober{logger: logger, ffprobePath: ffprobePath}
}

// Duration returns the container duration in seconds for any media file
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.run(ctx, path, "format=duration")
	if err != nil {
		return 0, err
	}
	d, err := parseSeconds(res.Format.Duration)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", path, err)
	}
	return d, nil
}

// videoInfo holds what a frame source caches at open
type videoInfo struct {
	width    int
	height   int
	fps      float64
	duration float64
}

// probeVideo reads size, frame rate and duration of the first video stream
func (p *Prober) probeVideo(ctx context.Context, path string) (videoInfo, error) {
	res, err := p.run(ctx, path, "stream=codec_type,width,height,r_frame_rate,avg_frame_rate,duration:format=duration")
	if err != nil {
		return videoInfo{}, err
	}
	return parseVideoInfo(res)
}

func (p *Prober) run(ctx context.Context, path, entries string) (*probeResult, error) {
	args := []string{
		"-v", "error",
		"-show_entries", entries,
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w (stderr: %s)", path, err, strings.TrimSpace(stderr.String()))
	}

	var res probeResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	p.logger.Debug("Probed media", zap.String("path", path), zap.Int("streams", len(res.Streams)))
	return &res, nil
}

func parseVideoInfo(res *probeResult) (videoInfo, error) {
	for _, s := range res.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			continue
		}

		fps, err := parseRate(s.RFrameRate)
		if err != nil || fps <= 0 {
			fps, err = parseRate(s.AvgFrameRate)
			if err != nil {
				return videoInfo{}, fmt.Errorf("invalid frame rate %q: %w", s.RFrameRate, err)
			}
		}

		duration, err := parseSeconds(s.Duration)
		if err != nil || duration <= 0 {
			duration, err = parseSeconds(res.Format.Duration)
			if err != nil {
				return videoInfo{}, fmt.Errorf("missing duration: %w", err)
			}
		}

		return videoInfo{width: s.Width, height: s.Height, fps: fps, duration: duration}, nil
	}
	return videoInfo{}, fmt.Errorf("no video stream found")
}

// parseRate parses ffprobe rationals such as "30000/1001"
func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}

func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("duration not reported")
	}
	return strconv.ParseFloat(s, 64)
}
