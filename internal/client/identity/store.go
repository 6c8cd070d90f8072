// Package identity keeps device-local state: the device token and user preferences.
package identity

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const (
	KeyDeviceID   = "RESOLVE_DEVICE_ID"
	KeySkillLevel = "RESOLVE_SKILL_LEVEL"
	KeyAPIKey     = "RESOLVE_API_KEY"
)

// Store is a flat key/value store with no schema versioning.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FileStore persists the map as YAML. Writes go through a temp file and rename.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

// DefaultPath is <user config dir>/resolve/device.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", eris.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "resolve", "device.yaml"), nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", s.Path)
	}
	m := map[string]string{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "parse %s", s.Path)
	}
	return m, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "encode device state")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return eris.Wrap(err, "create state dir")
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return eris.Wrap(err, "write device state")
	}
	return eris.Wrap(os.Rename(tmp, s.Path), "replace device state")
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]string{}} }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
