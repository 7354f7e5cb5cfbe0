package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/storage"
)

// ValueStore holds the cached value for every key this DC currently
// replicates. It has no notion of replication; all consistency is imposed
// by the replica manager. Reads are served from memory, writes go through
// to the backend's data_item namespace.
type ValueStore struct {
	backend storage.Backend
	logger  *zap.Logger
	mu      sync.RWMutex
	values  map[model.Key]model.Value
}

// NewValueStore creates a value store over the given backend
func NewValueStore(backend storage.Backend, logger *zap.Logger) *ValueStore {
	return &ValueStore{
		backend: backend,
		logger:  logger,
		values:  make(map[model.Key]model.Value),
	}
}

// Recover reloads cached values persisted by a previous run
func (s *ValueStore) Recover() error {
	keys, err := s.backend.Keys(storage.NamespaceDataItem)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		blob, err := s.backend.Read(storage.NamespaceDataItem, k)
		if err != nil {
			s.logger.Warn("Failed to recover value", zap.String("key", k), zap.Error(err))
			continue
		}
		s.values[k] = blob
	}

	s.logger.Info("Value store recovered", zap.Int("keys", len(s.values)))
	return nil
}

// Put upserts the value for key
func (s *ValueStore) Put(key model.Key, value model.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.values[key]
	s.values[key] = append(model.Value(nil), value...)

	var err error
	if existed {
		err = s.backend.Update(storage.NamespaceDataItem, key, value)
		if errors.Is(err, errors.ErrCodeNotFound) {
			err = s.backend.Create(storage.NamespaceDataItem, key, value)
		}
	} else {
		err = s.backend.Create(storage.NamespaceDataItem, key, value)
		if errors.Is(err, errors.ErrCodeAlreadyExists) {
			err = s.backend.Update(storage.NamespaceDataItem, key, value)
		}
	}
	if err != nil {
		return errors.Backend("value store put failed", err)
	}
	return nil
}

// Get returns the cached value for key
func (s *ValueStore) Get(key model.Key) (model.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, errors.NotFound(key)
	}
	return append(model.Value(nil), value...), nil
}

// Contains reports whether key is cached locally
func (s *ValueStore) Contains(key model.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[key]
	return ok
}

// Remove deletes the cached value for key
func (s *ValueStore) Remove(key model.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return errors.NotFound(key)
	}
	delete(s.values, key)

	if err := s.backend.Remove(storage.NamespaceDataItem, key); err != nil &&
		!errors.Is(err, errors.ErrCodeNotFound) {
		return errors.Backend("value store remove failed", err)
	}
	return nil
}

// Len returns the number of locally cached values
func (s *ValueStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
