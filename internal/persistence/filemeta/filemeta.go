// Package filemeta implements the metadata store on a single JSON file.
// It is the default backend for standalone deployments; the web admin
// layer owns schema management and writes the same file.
package filemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
)

var _ persistence.MetadataStore = (*Store)(nil)

type fileData struct {
	Components []core.ComponentSpec `json:"components"`
}

// Store reads and writes component definitions from a JSON file. All
// mutations rewrite the file atomically via a temp file and rename.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store backed by the given file path. The parent
// directory is created if needed; a missing file is an empty component
// set.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) load() (*fileData, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &fileData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file %s: %w", s.path, err)
	}
	return &data, nil
}

func (s *Store) save(data *fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0640); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}

// Snapshot implements persistence.MetadataStore.
func (s *Store) Snapshot(_ context.Context) ([]core.ComponentSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return data.Components, nil
}

// UpdateStatus implements persistence.MetadataStore.
func (s *Store) UpdateStatus(_ context.Context, componentID string, errMsg string, lastExec time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for i := range data.Components {
		if data.Components[i].ID != componentID {
			continue
		}
		data.Components[i].Error = errMsg
		if !lastExec.IsZero() {
			t := lastExec
			data.Components[i].LastExecution = &t
		}
		return s.save(data)
	}
	return fmt.Errorf("component %q not found", componentID)
}

// AppendRun implements persistence.MetadataStore.
func (s *Store) AppendRun(_ context.Context, componentID string, run core.ModelRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for i := range data.Components {
		if data.Components[i].ID != componentID {
			continue
		}
		data.Components[i].Runs = append(data.Components[i].Runs, run)
		return s.save(data)
	}
	return fmt.Errorf("component %q not found", componentID)
}

// Save replaces the whole component set. Used by the admin layer and by
// test setups.
func (s *Store) Save(_ context.Context, components []core.ComponentSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(&fileData{Components: components})
}
