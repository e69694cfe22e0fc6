package preference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const lastOrganizationKey = "last_organization_id"

// FileStore keeps the preference in a small JSON settings file, surviving process restarts on one device.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file and its directory are created on first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns the per-user preference file location for the CLI.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pulsedeck", "preferences.json"), nil
}

func newSettings(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return v
}

// Get reads the stored organization id. A missing file means nothing is stored.
func (s *FileStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("preference: read %s: %w", s.path, err)
	}
	v := newSettings(s.path)
	if err := v.ReadInConfig(); err != nil {
		return "", false, fmt.Errorf("preference: decode %s: %w", s.path, err)
	}
	orgID := v.GetString(lastOrganizationKey)
	if orgID == "" {
		return "", false, nil
	}
	return orgID, true, nil
}

// Set writes orgID to a sibling temp file and renames it over the settings file.
func (s *FileStore) Set(ctx context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("preference: %w", err)
	}
	v := newSettings(s.path)
	v.Set(lastOrganizationKey, orgID)
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+".tmp.json")
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("preference: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("preference: write: %w", err)
	}
	return nil
}

// Clear removes the file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("preference: clear: %w", err)
	}
	return nil
}
