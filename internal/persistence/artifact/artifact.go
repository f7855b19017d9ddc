// Package artifact implements the durable artifact storage handle on the
// local filesystem.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
)

var _ persistence.ArtifactStore = (*Store)(nil)

// Store creates per-run artifact directories below a base directory,
// grouped by model id.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// CreateRunDir implements persistence.ArtifactStore. The directory name
// is random so repeated training runs of one model never collide.
func (s *Store) CreateRunDir(modelID string) (string, error) {
	name := strings.ReplaceAll(uuid.New().String(), "-", "")
	path := filepath.Join(s.baseDir, modelID, name)

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("run directory %s already exists", path)
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return path, nil
}
