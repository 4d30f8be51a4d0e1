package cover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"github.com/genricoloni/reelplay/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// coversDir holds extracted and downloaded covers under the data directory
	coversDir = "music_covers"
	// cacheSize bounds the number of decoded covers kept in memory
	cacheSize = 128
)

// Store persists one cover image per track and keeps recently used ones decoded
type Store struct {
	logger  *zap.Logger
	dir     string
	opener  domain.SourceOpener
	fetcher domain.Fetcher
	cache   *lru.Cache[uint64, image.Image]
}

// NewStore creates a cover store inside the configured data directory
func NewStore(logger *zap.Logger, cfg domain.Config, opener domain.SourceOpener, fetcher domain.Fetcher) (*Store, error) {
	cache, err := lru.New[uint64, image.Image](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cover cache: %w", err)
	}
	return &Store{
		logger:  logger,
		dir:     filepath.Join(cfg.GetDataDir(), coversDir),
		opener:  opener,
		fetcher: fetcher,
		cache:   cache,
	}, nil
}

// Path is where the cover of t is stored
func (s *Store) Path(t *domain.Track) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.png", t.Playlist, t.Stem()))
}

// Ensure creates the cover file of t if missing: the middle frame of a video, or the
// remote thumbnail when the track has one. Audio without a thumbnail has no cover.
func (s *Store) Ensure(ctx context.Context, t *domain.Track) error {
	path := s.Path(t)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	var (
		img image.Image
		err error
	)
	switch {
	case t.IsVideo():
		img, err = s.middleFrame(ctx, t.RealPath)
	case t.ThumbnailURL != "":
		img, err = s.thumbnail(ctx, t.ThumbnailURL)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create covers directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save cover: %w", err)
	}

	s.cache.Add(key(path), img)
	s.logger.Debug("Cover saved", zap.String("track", t.RealPath), zap.String("path", path))
	return nil
}

// Load returns the decoded cover of t, false when it has none
func (s *Store) Load(t *domain.Track) (image.Image, bool) {
	path := s.Path(t)
	k := key(path)
	if img, ok := s.cache.Get(k); ok {
		return img, true
	}

	img, err := imaging.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to load cover", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	s.cache.Add(k, img)
	return img, true
}

// Forget drops t's cover from memory and disk
func (s *Store) Forget(t *domain.Track) error {
	path := s.Path(t)
	s.cache.Remove(key(path))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cover: %w", err)
	}
	return nil
}

func (s *Store) middleFrame(ctx context.Context, path string) (image.Image, error) {
	src, err := s.opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warn("Failed to close frame source", zap.Error(err))
		}
	}()
	return src.FrameAt(src.Duration() / 2)
}

func (s *Store) thumbnail(ctx context.Context, url string) (image.Image, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", url)
	}
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail: %w", err)
	}
	return img, nil
}

func key(path string) uint64 {
	return xxhash.Sum64String(path)
}
