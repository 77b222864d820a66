package mission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the current mission document between hub restarts.
// Save failures are tolerated by callers; the in-memory document stays
// authoritative for the running process.
type Store interface {
	// Load returns the persisted mission, or (nil, nil) when none exists.
	Load() (*Mission, error)
	Save(*Mission) error
}

// FileStore keeps the mission as a JSON blob on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted document, tolerating missing files and older
// shapes: an absent updated_ts is backfilled from created_ts or the
// current time, and an absent battery policy gets the defaults.
func (s *FileStore) Load() (*Mission, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file: %w", err)
	}

	var m Mission
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mission file: %w", err)
	}

	normalize(&m)
	return &m, nil
}

// Save writes the document atomically via a temp file rename.
func (s *FileStore) Save(m *Mission) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mission: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mission directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write mission file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace mission file: %w", err)
	}
	return nil
}

func normalize(m *Mission) {
	if m.Waypoints == nil {
		m.Waypoints = []Waypoint{}
	}
	if m.StagingPoints == nil {
		m.StagingPoints = []StagingPoint{}
	}
	if m.BatteryPolicy == (BatteryPolicy{}) {
		m.BatteryPolicy = BatteryPolicy{
			RTBBelowPct:    DefaultRTBBelowPct,
			ResumeAbovePct: DefaultResumeAbovePct,
		}
	}
	if m.UpdatedTS == "" {
		if m.CreatedTS != "" {
			m.UpdatedTS = m.CreatedTS
		} else if m.Available() {
			m.UpdatedTS = Timestamp(time.Now())
		}
	}
}
