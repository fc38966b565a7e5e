package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Prefs is the persisted slice of session state: volume levels and the
// display theme survive restarts, everything else starts fresh.
type Prefs struct {
	Volume         float64 `json:"volume"`
	PreviousVolume float64 `json:"previous_volume"`
	Theme          string  `json:"theme,omitempty"`
}

func defaultPrefs() Prefs {
	return Prefs{Volume: DefaultVolume, PreviousVolume: DefaultVolume}
}

// PrefsStore reads and writes preferences as a JSON file under the data
// directory. Writes are atomic via a rename.
type PrefsStore struct {
	mu   sync.Mutex
	path string
}

// NewPrefsStore creates a store backed by dataDir/prefs.json.
func NewPrefsStore(dataDir string) *PrefsStore {
	return &PrefsStore{path: filepath.Join(dataDir, "prefs.json")}
}

// Load reads the stored preferences. A missing or unreadable file yields the
// defaults rather than an error; preferences are best-effort state.
func (s *PrefsStore) Load() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return defaultPrefs()
	}

	p := defaultPrefs()
	if err := json.Unmarshal(raw, &p); err != nil {
		return defaultPrefs()
	}
	if p.Volume < 0 || p.Volume > 1 {
		p.Volume = DefaultVolume
	}
	if p.PreviousVolume <= 0 || p.PreviousVolume > 1 {
		p.PreviousVolume = DefaultVolume
	}
	return p
}

// Save writes the preferences to disk.
func (s *PrefsStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences file: %w", err)
	}
	return nil
}
