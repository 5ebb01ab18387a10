package backend

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const snapshotFile = "askdeck.json"

// SnapshotState is the serialized form of a MemStore.
type SnapshotState struct {
	Hashes  map[string]map[string]string  `json:"hashes"`
	ZSets   map[string]map[string]float64 `json:"zsets"`
	Streams map[string][]StreamEntry      `json:"streams"`
	Scalars map[string]string             `json:"scalars"`
	Expiry  map[string]int64              `json:"expiry"`
}

// Snapshotter handles the disk I/O for the embedded store.
type Snapshotter struct {
	dataDir string
	mu      sync.Mutex
}

// NewSnapshotter initializes a snapshotter, creating the data directory if
// needed.
func NewSnapshotter(dir string) (*Snapshotter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Snapshotter{dataDir: dir}, nil
}

// Save writes the state to a JSON file atomically: a temporary file first,
// then a rename, so a crash leaves either the old snapshot or the new one,
// never a corrupt mix.
func (s *Snapshotter) Save(state *SnapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := filepath.Join(s.dataDir, snapshotFile)
	tempPath := filePath + ".tmp"

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		slog.Warn("could not marshal snapshot", "error", err)
		return
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		slog.Warn("could not write snapshot", "path", tempPath, "error", err)
		return
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		slog.Warn("could not swap snapshot", "path", filePath, "error", err)
	}
}

// Load reads the last snapshot. A missing file yields nil state, no error.
func (s *Snapshotter) Load() (*SnapshotState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(filepath.Join(s.dataDir, snapshotFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var state SnapshotState
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
