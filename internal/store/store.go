package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cartseg/internal/dataset"
	"cartseg/internal/segment"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no result has been stored for a window.
var ErrNotFound = errors.New("no stored result for window")

// ResultStore persists one segmentation result per analysis window as a
// JSON document, with a read-through in-memory cache. Results for the same
// window and configuration are byte-identical, so a rewrite is harmless.
type ResultStore struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]*segment.Result
}

// NewResultStore creates a store rooted at dir. The directory is created
// lazily on the first Save.
func NewResultStore(dir string) *ResultStore {
	return &ResultStore{
		dir:   dir,
		cache: make(map[string]*segment.Result),
	}
}

func (s *ResultStore) path(key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("result_%s.json", key))
}

// Save writes the result to disk via a temp file and atomic rename, then
// updates the cache.
func (s *ResultStore) Save(res *segment.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	key := res.Window.Key()
	path := s.path(key)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp result file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(res); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = res
	s.mu.Unlock()

	log.Info().Str("window", key).Int("segments", len(res.Segments)).Msg("Segmentation result saved")
	return nil
}

// Load returns the result for the given window key, reading from disk on a
// cache miss. ErrNotFound is returned when neither holds it.
func (s *ResultStore) Load(key string) (*segment.Result, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var res segment.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result for window %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = &res
	s.mu.Unlock()

	log.Debug().Str("window", key).Msg("Loaded segmentation result from disk")
	return &res, nil
}

// Exists reports whether a result is stored for the window key.
func (s *ResultStore) Exists(key string) bool {
	s.mu.RLock()
	_, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return true
	}
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Delete removes the stored result for the window key from disk and cache.
// Deleting a missing result is not an error.
func (s *ResultStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove result file: %w", err)
	}
	return nil
}

// List returns the window keys of all stored results in ascending order.
func (s *ResultStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "result_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, "result_"), ".json")
		if _, err := dataset.ParseWindowKey(key); err != nil {
			log.Warn().Str("file", name).Msg("Skipping store file with unparseable window key")
			continue
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}
