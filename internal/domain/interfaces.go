package domain

import (
	"context"
	"image"
	"time"
)

// FrameSource wraps a decodable media file.
// Implementations are owned by a single goroutine at a time and are not safe for concurrent use.
type FrameSource interface {
	// FrameAt decodes the image shown at the given offset in seconds.
	// Out of range offsets return an error wrapping ErrDecode
	FrameAt(timestamp float64) (image.Image, error)

	// Duration returns the length in seconds, cached at open
	Duration() float64

	// FPS returns the video frame rate, cached at open
	FPS() float64

	// Size returns the decoded frame dimensions
	Size() Size

	// Close releases decoder resources; calling it twice is allowed
	Close() error
}

// SourceOpener opens frame sources
type SourceOpener interface {
	// Open probes the file and returns a ready source or an error wrapping ErrOpen
	Open(ctx context.Context, path string) (FrameSource, error)
}

// DurationProber measures the length of any media file
type DurationProber interface {
	// Duration returns the length in seconds
	Duration(ctx context.Context, path string) (float64, error)
}

// AudioEventKind enumerates events emitted by the audio engine
type AudioEventKind int

const (
	// AudioTrackEnded is emitted when playback reaches the end of the loaded file
	AudioTrackEnded AudioEventKind = iota
)

// AudioEvent is emitted asynchronously by the audio engine
type AudioEvent struct {
	Kind AudioEventKind
	// Path is the file that was playing
	Path string
}

// AudioEngine decodes and outputs the soundtrack of the current track
//
//go:generate mockgen -destination=mocks/audio_engine_mock.go -package=mocks github.com/genricoloni/reelplay/internal/domain AudioEngine
type AudioEngine interface {
	// Load prepares a file for playback
	Load(path string) error
	// Play starts the loaded file from the given offset in seconds
	Play(offset float64) error
	// Pause suspends output
	Pause() error
	// Unpause resumes output
	Unpause() error
	// Stop halts output and unloads the file
	Stop() error
	// SetVolume sets the output volume in [0, 1]
	SetVolume(volume float64) error
	// Seek moves the playback position
	Seek(seconds float64) error
	// Events returns a read-only channel of engine events
	Events() <-chan AudioEvent
}

// Notifier surfaces errors to the user (message box equivalent)
type Notifier interface {
	// Notify shows a message to the user
	Notify(ctx context.Context, title, message string) error
}

// Presence publishes the current track to desktop integrations
type Presence interface {
	// Update publishes the current state; implementations must not block
	Update(np NowPlaying)
}

// Renderer is the immediate-mode UI consuming frame views once per tick
type Renderer interface {
	// Request returns the rectangles the UI will draw the video into this tick
	Request() FrameRequest
	// Render draws the view; it runs on the engine goroutine
	Render(view FrameView)
}

// Settings exposes runtime-mutable playback settings
type Settings interface {
	// Threaded reports whether video frames are decoded on a background goroutine
	Threaded() bool
	// TargetFramerate returns the UI tick rate
	TargetFramerate() float64
	// SetThreaded switches the decoding mode for workers created afterwards
	SetThreaded(threaded bool)
}

// TrackList is an ordered playlist
type TrackList interface {
	// Len returns the number of tracks
	Len() int
	// At returns the track at index i
	At(i int) (*Track, bool)
	// Index returns the position of t, -1 when absent
	Index(t *Track) int
	// Remove drops the track whose audio path matches
	Remove(audioPath string) bool
}

// PlaylistStore resolves playlists by name
type PlaylistStore interface {
	Playlist(name string) (TrackList, bool)
}

// Config defines the interface for application configuration
type Config interface {
	Settings

	// GetDataDir returns the directory holding converted audio, covers and state
	GetDataDir() string

	// GetFFmpegPath returns the ffmpeg binary
	GetFFmpegPath() string

	// GetFFprobePath returns the ffprobe binary
	GetFFprobePath() string

	// GetFFplayPath returns the ffplay binary
	GetFFplayPath() string
}

// Fetcher defines the interface for retrieving remote artwork
type Fetcher interface {
	// Fetch downloads or reads image data from a URL or local path
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clock abstracts wall-clock time so position math can be tested
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}
