package config

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultDataDir         = "~/.local/share/reelplay"
	defaultFFmpegPath      = "ffmpeg"
	defaultFFprobePath     = "ffprobe"
	defaultFFplayPath      = "ffplay"
	defaultTargetFramerate = 60
	defaultVolume          = 1.0
	minFramerate           = 1
	maxFramerate           = 240
)

// Overrides carries values coming from command line flags; zero values keep the environment
type Overrides struct {
	DataDir         string
	Threaded        *bool
	TargetFramerate float64
	EnvFile         string
}

// AppConfig holds application configuration
type AppConfig struct {
	logger      *zap.Logger
	dataDir     string
	ffmpegPath  string
	ffprobePath string
	ffplayPath  string
	volume      float64

	threaded  atomic.Bool
	framerate atomic.Uint64 // math.Float64bits
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger, ov Overrides) *AppConfig {
	if err := LoadEnv(ov.EnvFile); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	c := &AppConfig{
		logger:      logger,
		dataDir:     ResolveDataDir(ov),
		ffmpegPath:  getEnv("REELPLAY_FFMPEG", defaultFFmpegPath),
		ffprobePath: getEnv("REELPLAY_FFPROBE", defaultFFprobePath),
		ffplayPath:  getEnv("REELPLAY_FFPLAY", defaultFFplayPath),
		volume:      clamp(getEnvFloat("REELPLAY_VOLUME", defaultVolume), 0, 1),
	}

	threaded := getEnvBool("REELPLAY_THREADED_DECODING", true)
	if ov.Threaded != nil {
		threaded = *ov.Threaded
	}
	c.threaded.Store(threaded)

	framerate := getEnvFloat("REELPLAY_TARGET_FRAMERATE", defaultTargetFramerate)
	if ov.TargetFramerate > 0 {
		framerate = ov.TargetFramerate
	}
	c.SetTargetFramerate(framerate)

	logger.Info("Configuration loaded",
		zap.String("dataDir", c.dataDir),
		zap.Bool("threaded", c.Threaded()),
		zap.Float64("framerate", c.TargetFramerate()))

	return c
}

// envLoad is the outcome of reading one dotenv file
type envLoad struct {
	once sync.Once
	err  error
}

var envLoads sync.Map // path -> *envLoad

// LoadEnv reads path (".env" when empty) into the process environment.
// Variables already set are never overridden. Each path is read once per process;
// later calls return the first result.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	v, _ := envLoads.LoadOrStore(path, &envLoad{})
	l := v.(*envLoad)
	l.once.Do(func() { l.err = godotenv.Load(path) })
	return l.err
}

// ResolveDataDir returns the data directory from the flag override or REELPLAY_DATA_DIR
func ResolveDataDir(ov Overrides) string {
	dataDir := getEnv("REELPLAY_DATA_DIR", defaultDataDir)
	if ov.DataDir != "" {
		dataDir = ov.DataDir
	}
	return expandPath(dataDir)
}

// Threaded reports whether frames are decoded on a background goroutine
func (c *AppConfig) Threaded() bool {
	return c.threaded.Load()
}

// SetThreaded toggles background decoding
func (c *AppConfig) SetThreaded(v bool) {
	c.threaded.Store(v)
}

// TargetFramerate returns the UI tick rate
func (c *AppConfig) TargetFramerate() float64 {
	return math.Float64frombits(c.framerate.Load())
}

// SetTargetFramerate changes the UI tick rate, clamped to a sane range
func (c *AppConfig) SetTargetFramerate(fps float64) {
	c.framerate.Store(math.Float64bits(clamp(fps, minFramerate, maxFramerate)))
}

// InitialVolume returns the configured startup volume
func (c *AppConfig) InitialVolume() float64 {
	return c.volume
}

// GetDataDir returns the directory holding converted audio, covers and state
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// GetFFmpegPath returns the ffmpeg binary
func (c *AppConfig) GetFFmpegPath() string {
	return c.ffmpegPath
}

// GetFFprobePath returns the ffprobe binary
func (c *AppConfig) GetFFprobePath() string {
	return c.ffprobePath
}

// GetFFplayPath returns the ffplay binary
func (c *AppConfig) GetFFplayPath() string {
	return c.ffplayPath
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// expandPath resolves environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
