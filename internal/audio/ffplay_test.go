package audio

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/reelplay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type binConfig struct {
	ffplay string
}

func (c binConfig) Threaded() bool { return true }
func (c binConfig) TargetFramerate() float64 { return 60 }
func (c binConfig) SetThreaded(bool) {}
func (c binConfig) GetDataDir() string { return "" }
func (c binConfig) GetFFmpegPath() string { return "ffmpeg" }
func (c binConfig) GetFFprobePath() string { return "ffprobe" }
func (c binConfig) GetFFplayPath() string { return c.ffplay }

// fakePlayer writes a shell script that logs its arguments and sleeps
func fakePlayer(t *testing.T, sleep string) (binary, argsLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script player requires a POSIX shell")
	}
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args.log")
	binary = filepath.Join(dir, "ffplay")
	script := "#!/bin/sh\necho \"$@\" >> " + argsLog + "\nexec sleep " + sleep + "\n"
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))
	return binary, argsLog
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// waitRuns blocks until the fake player logged n invocations
func waitRuns(t *testing.T, argsLog string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(argsLog)
		return err == nil && strings.Count(string(data), "\n") >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFFplayEngine_EmitsEndOfTrack(t *testing.T) {
	binary, _ := fakePlayer(t, "0.1")
	e := NewFFplayEngine(zap.NewNop(), binConfig{ffplay: binary})
	defer e.Close(context.Background())

	require.NoError(t, e.Load("/music/song.mp3"))
	require.NoError(t, e.Play(0))

	select {
	case ev := <-e.Events():
		assert.Equal(t, domain.AudioTrackEnded, ev.Kind)
		assert.Equal(t, "/music/song.mp3", ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("expected end of track event")
	}
}

func TestFFplayEngine_KilledProcessDoesNotEmit(t *testing.T) {
	binary, argsLog := fakePlayer(t, "5")
	e := NewFFplayEngine(zap.NewNop(), binConfig{ffplay: binary})
	defer e.Close(context.Background())

	require.NoError(t, e.Load("/music/song.mp3"))
	require.NoError(t, e.Play(0))
	waitRuns(t, argsLog, 1)
	require.NoError(t, e.SetVolume(0.5))
	waitRuns(t, argsLog, 2)
	require.NoError(t, e.Pause())
	assert.Nil(t, e.proc)

	require.NoError(t, e.Seek(42))
	assert.InDelta(t, 42, e.Position(), 1e-9, "seeking while paused only moves the offset")

	require.NoError(t, e.Unpause())
	waitRuns(t, argsLog, 3)
	require.NoError(t, e.Stop())

	select {
	case ev := <-e.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	runs := readArgs(t, argsLog)
	assert.Contains(t, runs[0], "-volume 100 -ss 0.000 /music/song.mp3")
	assert.Contains(t, runs[1], "-volume 50")
	assert.Contains(t, runs[2], "-ss 42.000")
	for _, run := range runs {
		assert.True(t, strings.HasPrefix(run, "-nodisp -autoexit"))
	}
}

func TestFFplayEngine_PlayRequiresLoad(t *testing.T) {
	e := NewFFplayEngine(zap.NewNop(), binConfig{ffplay: "ffplay"})
	assert.ErrorIs(t, e.Play(0), errNotLoaded)
	assert.ErrorIs(t, e.Seek(1), errNotLoaded)
	require.NoError(t, e.Close(context.Background()))

	_, open := <-e.Events()
	assert.False(t, open, "close releases consumers")
	assert.Error(t, e.Load("/music/song.mp3"))
}

func TestFFplayEngine_StartFailure(t *testing.T) {
	e := NewFFplayEngine(zap.NewNop(), binConfig{ffplay: filepath.Join(t.TempDir(), "missing-ffplay")})
	defer e.Close(context.Background())

	require.NoError(t, e.Load("/music/song.mp3"))
	err := e.Play(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start ffplay")
}
