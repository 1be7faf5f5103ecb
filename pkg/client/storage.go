package client

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Storage persists cache envelopes between runs. Implementations may lose
// data at any time, the cache rebuilds from the server.
type Storage interface {
	Load(key string, dst any) (bool, error)
	Save(key string, value any) error
	Delete(key string) error
}

// FileStorage keeps one JSON file per key under a directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) Load(key string, dst any) (bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal(raw, dst); err != nil {
		// corrupt envelope, treat as absent
		return false, nil
	}
	return true, nil
}

func (s *FileStorage) Save(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), raw, 0o644)
}

func (s *FileStorage) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryStorage is the in-process Storage used by tests.
type MemoryStorage struct {
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(key string, dst any) (bool, error) {
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStorage) Save(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	delete(s.data, key)
	return nil
}
