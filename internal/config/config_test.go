package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	t.Setenv("REELPLAY_DATA_DIR", "")
	t.Setenv("REELPLAY_THREADED_DECODING", "")
	t.Setenv("REELPLAY_TARGET_FRAMERATE", "")

	cfg := NewAppConfig(zap.NewNop(), Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})

	if !cfg.Threaded() {
		t.Error("threaded decoding should default to true")
	}
	if cfg.TargetFramerate() != defaultTargetFramerate {
		t.Errorf("expected framerate %d, got %v", defaultTargetFramerate, cfg.TargetFramerate())
	}
	if cfg.GetFFmpegPath() != "ffmpeg" {
		t.Errorf("expected ffmpeg, got %s", cfg.GetFFmpegPath())
	}
	if cfg.GetDataDir() == "" || cfg.GetDataDir()[0] == '~' {
		t.Errorf("expected expanded data dir, got %q", cfg.GetDataDir())
	}
}

func TestNewAppConfig_EnvAndOverrides(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		overrides     Overrides
		wantThreaded  bool
		wantFramerate float64
		wantDataDir   string
	}{
		{
			name:          "Environment values",
			env:           map[string]string{"REELPLAY_THREADED_DECODING": "false", "REELPLAY_TARGET_FRAMERATE": "30", "REELPLAY_DATA_DIR": "/tmp/reel"},
			wantThreaded:  false,
			wantFramerate: 30,
			wantDataDir:   "/tmp/reel",
		},
		{
			name:          "Flags win over environment",
			env:           map[string]string{"REELPLAY_THREADED_DECODING": "false", "REELPLAY_TARGET_FRAMERATE": "30"},
			overrides:     Overrides{Threaded: boolPtr(true), TargetFramerate: 144, DataDir: "/tmp/flag"},
			wantThreaded:  true,
			wantFramerate: 144,
			wantDataDir:   "/tmp/flag",
		},
		{
			name:          "Framerate clamped",
			env:           map[string]string{"REELPLAY_TARGET_FRAMERATE": "10000", "REELPLAY_DATA_DIR": "/tmp/reel"},
			wantThreaded:  true,
			wantFramerate: maxFramerate,
			wantDataDir:   "/tmp/reel",
		},
		{
			name:          "Garbage ignored",
			env:           map[string]string{"REELPLAY_TARGET_FRAMERATE": "fast", "REELPLAY_THREADED_DECODING": "maybe", "REELPLAY_DATA_DIR": "/tmp/reel"},
			wantThreaded:  true,
			wantFramerate: defaultTargetFramerate,
			wantDataDir:   "/tmp/reel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REELPLAY_THREADED_DECODING", "")
			t.Setenv("REELPLAY_TARGET_FRAMERATE", "")
			t.Setenv("REELPLAY_DATA_DIR", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.overrides.EnvFile = filepath.Join(t.TempDir(), "missing.env")

			cfg := NewAppConfig(zap.NewNop(), tt.overrides)

			if cfg.Threaded() != tt.wantThreaded {
				t.Errorf("threaded: expected %v, got %v", tt.wantThreaded, cfg.Threaded())
			}
			if cfg.TargetFramerate() != tt.wantFramerate {
				t.Errorf("framerate: expected %v, got %v", tt.wantFramerate, cfg.TargetFramerate())
			}
			if cfg.GetDataDir() != tt.wantDataDir {
				t.Errorf("dataDir: expected %s, got %s", tt.wantDataDir, cfg.GetDataDir())
			}
		})
	}
}

func TestNewAppConfig_DotEnv(t *testing.T) {
	t.Setenv("REELPLAY_FFMPEG", "")
	os.Unsetenv("REELPLAY_FFMPEG")

	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("REELPLAY_FFMPEG=/opt/ffmpeg/bin/ffmpeg\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("REELPLAY_FFMPEG") })

	cfg := NewAppConfig(zap.NewNop(), Overrides{EnvFile: envFile})
	if cfg.GetFFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("expected ffmpeg path from .env, got %s", cfg.GetFFmpegPath())
	}
}

func TestAppConfig_RuntimeSetters(t *testing.T) {
	cfg := NewAppConfig(zap.NewNop(), Overrides{EnvFile: filepath.Join(t.TempDir(), "none.env")})

	cfg.SetThreaded(false)
	if cfg.Threaded() {
		t.Error("expected threaded decoding off")
	}
	cfg.SetTargetFramerate(0)
	if cfg.TargetFramerate() != minFramerate {
		t.Errorf("expected clamp to %d, got %v", minFramerate, cfg.TargetFramerate())
	}
}

func boolPtr(b bool) *bool { return &b }

func TestResolveDataDir(t *testing.T) {
	t.Setenv("REELPLAY_DATA_DIR", "/srv/reelplay")
	if got := ResolveDataDir(Overrides{}); got != "/srv/reelplay" {
		t.Errorf("expected env data dir, got %q", got)
	}
	if got := ResolveDataDir(Overrides{DataDir: "/tmp/flag"}); got != "/tmp/flag" {
		t.Errorf("expected flag data dir, got %q", got)
	}

	t.Setenv("REELPLAY_DATA_DIR", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ResolveDataDir(Overrides{}); got != filepath.Join(home, ".local/share/reelplay") {
		t.Errorf("expected default under home, got %q", got)
	}
}

func TestLoadEnv_Missing(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for a missing env file")
	}
}

func TestLoadEnv_ReadsOnce(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "once.env")
	if err := os.WriteFile(envFile, []byte("REELPLAY_ONCE_TEST=1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("REELPLAY_ONCE_TEST") })

	if err := LoadEnv(envFile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if os.Getenv("REELPLAY_ONCE_TEST") != "1" {
		t.Fatal("expected variable from env file")
	}

	if err := os.Remove(envFile); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(envFile); err != nil {
		t.Errorf("expected the first result again, got %v", err)
	}
}
