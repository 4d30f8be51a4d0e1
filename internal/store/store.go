package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const (
	stateFile = "state.json"
	// SaveInterval is how often the document is written while running
	SaveInterval = 2 * time.Minute
)

// Store reads and writes the state document inside the data directory
type Store struct {
	logger *zap.Logger
	path   string
	mu     sync.Mutex
}

// NewStore creates a store for dataDir/state.json
func NewStore(logger *zap.Logger, dataDir string) *Store {
	return &Store{logger: logger, path: filepath.Join(dataDir, stateFile)}
}

// Path returns the state file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the document; a missing file yields an empty state
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No saved state, starting empty", zap.String("path", s.path))
		return State{Version: stateVersion}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	if st.Version > stateVersion {
		return State{}, fmt.Errorf("state version %d is newer than supported %d", st.Version, stateVersion)
	}
	return st, nil
}

// Save writes st through a temporary file and renames it into place
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace state: %w", err)
	}

	s.logger.Debug("State saved",
		zap.String("path", s.path),
		zap.Int("playlists", len(st.Playlists)),
		zap.Int("history", len(st.History)))
	return nil
}

// Saver persists a snapshot periodically and once more on shutdown
type Saver struct {
	logger    *zap.Logger
	store     *Store
	snapshot  func() State
	interval  time.Duration
	scheduler *gocron.Scheduler
}

// NewSaver creates a saver writing snapshot() every SaveInterval
func NewSaver(logger *zap.Logger, store *Store, snapshot func() State) *Saver {
	return &Saver{
		logger:   logger,
		store:    store,
		snapshot: snapshot,
		interval: SaveInterval,
	}
}

// Start schedules the periodic save; the first run happens after one interval
func (s *Saver) Start() error {
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()
	if _, err := sched.Every(s.interval).WaitForSchedule().Do(s.save); err != nil {
		return fmt.Errorf("failed to schedule state save: %w", err)
	}
	sched.StartAsync()
	s.scheduler = sched

	s.logger.Info("State autosave scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and writes the final snapshot
func (s *Saver) Stop() error {
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}
	return s.store.Save(s.snapshot())
}

func (s *Saver) save() {
	if err := s.store.Save(s.snapshot()); err != nil {
		s.logger.Error("Autosave failed", zap.Error(err))
	}
}
