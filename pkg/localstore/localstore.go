// Package localstore persists client-local UI state (filter values, saved
// presets) across restarts.
//
// Values are addressed by typed keys and wrapped in a versioned envelope:
//
//	{"version": 1, "value": {...}}
//
// A stored value whose version does not match the key is treated as absent,
// so a schema change never misreads old data.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// Key identifies a stored value of type T at a schema version.
type Key[T any] struct {
	name    string
	version int
}

// NewKey returns a key. Names may contain letters, digits, '.', '-' and '_'.
func NewKey[T any](name string, version int) Key[T] {
	return Key[T]{name: name, version: version}
}

// Name returns the storage name of the key.
func (k Key[T]) Name() string { return k.name }

// Version returns the schema version of the key.
func (k Key[T]) Version() int { return k.version }

// Store is raw byte storage keyed by name. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(name string) (data []byte, ok bool, err error)
	Put(name string, data []byte) error
	Delete(name string) error
	Names() ([]string, error)
}

type envelope struct {
	Version int             `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// Load reads the value for k. ok is false when nothing is stored, the stored
// envelope carries another version, or the payload cannot be decoded into T.
// Only storage failures are returned as errors.
func Load[T any](s Store, k Key[T]) (value T, ok bool, err error) {
	data, found, err := s.Get(k.name)
	if err != nil {
		return value, false, fmt.Errorf("reading %s: %w", k.name, err)
	}
	if !found {
		return value, false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return value, false, nil
	}
	if env.Version != k.version || len(env.Value) == 0 {
		return value, false, nil
	}
	if err := json.Unmarshal(env.Value, &value); err != nil {
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// Save writes v under k wrapped in a versioned envelope.
func Save[T any](s Store, k Key[T], v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", k.name, err)
	}
	data, err := json.Marshal(envelope{Version: k.version, Value: raw})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", k.name, err)
	}
	if err := s.Put(k.name, data); err != nil {
		return fmt.Errorf("writing %s: %w", k.name, err)
	}
	return nil
}

// Remove deletes the value for k. Removing a missing key is not an error.
func Remove[T any](s Store, k Key[T]) error {
	if err := s.Delete(k.name); err != nil {
		return fmt.Errorf("removing %s: %w", k.name, err)
	}
	return nil
}

// ErrInvalidName is returned for key names that cannot be used as file names.
var ErrInvalidName = errors.New("invalid state key name")

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func checkName(name string) error {
	if !validName.MatchString(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// ============================================================================
// FileStore
// ============================================================================

// FileStore keeps one JSON file per key in a directory. Writes are atomic
// (temp file + rename).
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory is created on the
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Get implements Store.
func (s *FileStore) Get(name string) ([]byte, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put implements Store.
func (s *FileStore) Put(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := s.path(name)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Names implements Store.
func (s *FileStore) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".json") || strings.Contains(n, ".tmp-") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore is an in-process Store for tests and --demo mode.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// Names implements Store.
func (s *MemoryStore) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for n := range s.data {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
