package convert

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConfig struct {
	dataDir string
	ffmpeg  string
}

func (c testConfig) Threaded() bool { return true }
func (c testConfig) TargetFramerate() float64 { return 60 }
func (c testConfig) SetThreaded(bool) {}
func (c testConfig) GetDataDir() string { return c.dataDir }
func (c testConfig) GetFFmpegPath() string { return c.ffmpeg }
func (c testConfig) GetFFprobePath() string { return "ffprobe" }
func (c testConfig) GetFFplayPath() string { return "ffplay" }

type recordingRemover struct {
	mu      sync.Mutex
	removed []*domain.Track
}

func (r *recordingRemover) RemoveTrack(t *domain.Track) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, t)
	return true
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(ctx context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func newTestConverter(t *testing.T, ffmpeg string) (*Converter, *recordingRemover, *recordingNotifier) {
	t.Helper()
	remover := &recordingRemover{}
	notifier := &recordingNotifier{}
	c := NewConverter(zap.NewNop(), testConfig{dataDir: t.TempDir(), ffmpeg: ffmpeg}, remover, notifier)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, remover, notifier
}

func TestConverter_OutputPath(t *testing.T) {
	c, _, _ := newTestConverter(t, "ffmpeg")
	track := domain.NewTrack("/videos/My Clip.mp4", "road trip")
	assert.Equal(t, filepath.Join(c.dir, "road trip_My Clip.mp3"), c.OutputPath(track))
}

func TestConverter_PrepareWithoutConversion(t *testing.T) {
	c, _, _ := newTestConverter(t, "ffmpeg")

	t.Run("Plain audio keeps real path", func(t *testing.T) {
		track := domain.NewTrack("/music/a.flac", "mix")
		c.Prepare(track)
		assert.Equal(t, "/music/a.flac", track.AudioPath())
		assert.False(t, track.Pending())
	})

	t.Run("Plain audio marked converted uses the copy", func(t *testing.T) {
		track := domain.NewTrack("/music/b.mp3", "mix")
		track.SetConverted(true)
		c.Prepare(track)
		assert.Equal(t, c.OutputPath(track), track.AudioPath())
	})

	t.Run("Existing copy is reused", func(t *testing.T) {
		track := domain.NewTrack("/videos/clip.webm", "mix")
		require.NoError(t, os.MkdirAll(c.dir, 0o755))
		require.NoError(t, os.WriteFile(c.OutputPath(track), []byte("mp3"), 0o644))

		c.Prepare(track)
		assert.Equal(t, c.OutputPath(track), track.AudioPath())
		assert.True(t, track.Converted())
		assert.False(t, track.Pending())
	})
}

func TestConverter_Failure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-ffmpeg")

	tests := []struct {
		name          string
		path          string
		expectRemoved bool
		expectTitle   string
	}{
		{"Convertible audio falls back to original", "/music/song.m4a", false, "Could not convert music"},
		{"Video is removed", "/videos/clip.mkv", true, "Could not load music"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, remover, notifier := newTestConverter(t, missing)
			track := domain.NewTrack(tt.path, "mix")

			c.Prepare(track)
			c.Wait()

			assert.False(t, track.Pending())
			assert.False(t, track.Converted())
			assert.Equal(t, []string{tt.expectTitle}, notifier.titles)
			if tt.expectRemoved {
				assert.Equal(t, []*domain.Track{track}, remover.removed)
			} else {
				assert.Empty(t, remover.removed)
				assert.Equal(t, tt.path, track.AudioPath())
			}
		})
	}
}

func TestConverter_ConvertsWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping conversion test")
	}

	src := filepath.Join(t.TempDir(), "tone.m4a")
	cmd := exec.Command("ffmpeg", "-y", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:a", "aac", src)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot create test audio: %v: %s", err, out)
	}

	c, remover, notifier := newTestConverter(t, "ffmpeg")
	track := domain.NewTrack(src, "mix")

	c.Prepare(track)
	assert.True(t, track.Pending(), "pending while converting")
	c.Wait()

	assert.False(t, track.Pending())
	assert.True(t, track.Converted())
	assert.Equal(t, c.OutputPath(track), track.AudioPath())
	assert.FileExists(t, track.AudioPath())
	assert.NoFileExists(t, track.AudioPath()+".part")
	assert.Empty(t, remover.removed)
	assert.Empty(t, notifier.titles)
}
