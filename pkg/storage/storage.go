// Package storage is the persisted key-value collaborator used for engine
// configuration. Records are CBOR-encoded so the on-disk format stays stable
// across process restarts and schema additions.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/go-biokey/biokey/pkg/biotypes"
)

// ConfigKey is the fixed storage key under which the engine's configuration
// record lives.
const ConfigKey = "biokey.configuration"

var ErrNotFound = errors.New("storage: record not found")

// Store is a persisted key-value store. Implementations must tolerate reads
// of absent keys by returning ErrNotFound.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// LoadConfiguration reads and decodes the configuration record. An absent
// record yields the zero Configuration, not an error.
func LoadConfiguration(s Store) (biotypes.Configuration, error) {
	var cfg biotypes.Configuration

	b, err := s.Get(ConfigKey)
	if errors.Is(err, ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cannot read configuration record: %w", err)
	}

	if err := cbor.Unmarshal(b, &cfg); err != nil {
		return biotypes.Configuration{}, fmt.Errorf("cannot decode configuration record: %w", err)
	}

	return cfg, nil
}

// SaveConfiguration encodes and writes the configuration record.
func SaveConfiguration(s Store, cfg biotypes.Configuration) error {
	b, err := cbor.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot encode configuration record: %w", err)
	}

	if err := s.Put(ConfigKey, b); err != nil {
		return fmt.Errorf("cannot write configuration record: %w", err)
	}

	return nil
}

// MemoryStore is an in-memory Store, used in tests and as a default when no
// persistence collaborator is injected.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := make([]byte, len(value))
	copy(b, value)
	m.records[key] = b
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// FileStore persists each record as one file under a directory, named by the
// record key. Keys are used as file names verbatim, so they must not contain
// path separators.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create storage directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(f.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (f *FileStore) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Write-then-rename keeps a crashed write from truncating the record.
	tmp := filepath.Join(f.dir, key+".tmp")
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, filepath.Join(f.dir, key))
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(filepath.Join(f.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
