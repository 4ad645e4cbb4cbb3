package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"

	apperrors "github.com/Taichi-iskw/yt-skip/internal/errors"
)

// fileStore implements Store on top of a single JSON document
type fileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewFileStore opens the store at path, creating an empty document if the file does not exist
func NewFileStore(path string) (Store, error) {
	s := &fileStore{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// load reads the document into memory
func (s *fileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Save immediately to catch permission errors early
			return s.save()
		}
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to read store file")
	}

	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "store file is corrupt")
	}

	return nil
}

// save persists the document atomically; callers hold the write lock
func (s *fileStore) save() error {
	writer, err := newAtomicWriter(s.path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to open store file")
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		writer.Abort()
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to encode store file")
	}

	if err := writer.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorage, "failed to write store file")
	}

	return nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (s *fileStore) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return apperrors.New(apperrors.CodeInvalidArg, "value must be a JSON document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.data[key]
	s.data[key] = json.RawMessage(cloneBytes(value))
	if err := s.save(); err != nil {
		// keep memory consistent with disk
		if existed {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *fileStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]json.RawMessage)
	for _, key := range keys {
		if value, ok := s.data[key]; ok {
			removed[key] = value
			delete(s.data, key)
		}
	}

	if len(removed) == 0 {
		return nil
	}

	if err := s.save(); err != nil {
		for key, value := range removed {
			s.data[key] = value
		}
		return err
	}
	return nil
}

func (s *fileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Close() error {
	return nil
}
