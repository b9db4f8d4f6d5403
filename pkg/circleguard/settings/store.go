// Package settings persists user preferences as a flat key/value YAML file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/circleguard/pkg/utils"
)

const fileName = "settings.yaml"

// ErrNotFound is returned by Get for keys that were never set.
var ErrNotFound = errors.New("setting not found")

// Store is a mutex-guarded settings map backed by one YAML file. Every
// mutation is written through to disk.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// DefaultPath returns settings.yaml under the user's config directory.
func DefaultPath() (string, error) {
	scope := gap.NewScope(gap.User, "circleguard")
	return scope.ConfigPath(fileName)
}

// Open loads the store at path. A missing file is an empty store; it is
// created on the first write.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving settings path: %w", err)
		}
		path = p
	}

	s := &Store{path: path, values: make(map[string]any)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	return s, nil
}

// OpenDefault opens the store at DefaultPath and populates defaults on
// first run.
func OpenDefault() (*Store, error) {
	s, err := Open("")
	if err != nil {
		return nil, err
	}
	if err := s.EnsureDefaults(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// String returns the value as a string, or "" if unset.
func (s *Store) String(key string) string {
	v, err := s.Get(key)
	if err != nil || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Int returns the value as an int. Unset or non-numeric values yield 0.
func (s *Store) Int(key string) int {
	v, err := s.Get(key)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// Float returns the value as a float64. Unset or non-numeric values yield 0.
func (s *Store) Float(key string) float64 {
	v, err := s.Get(key)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

// Bool treats non-zero numbers and "true"-like strings as true, matching
// the 0/1 flags the defaults use.
func (s *Store) Bool(key string) bool {
	v, err := s.Get(key)
	if err != nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	}
	return false
}

// Set stores value under key and persists the whole store.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset clears every key and writes the defaults back.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = Defaults()
	return s.saveLocked()
}

// EnsureDefaults populates the defaults once, the first time the store is
// used. Later calls leave user changes alone.
func (s *Store) EnsureDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[KeyRan]; ok {
		return nil
	}
	s.values = Defaults()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := utils.MakeDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	tmp := utils.TempSibling(s.path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := utils.MoveFile(tmp, s.path); err != nil {
		utils.RemoveIfExists(tmp)
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
