package registry

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
	"github.com/ader1990/adpreplic/internal/model"
	"github.com/ader1990/adpreplic/internal/storage"
)

// Registry tracks replica metadata for every key known at this DC. It is
// the single source of truth for who holds what. Records are persisted to
// the backend's data_info namespace; strength is volatile and survives only
// in memory.
type Registry struct {
	backend storage.Backend
	logger  *zap.Logger
	mu      sync.RWMutex
	records map[model.Key]*model.ReplicaRecord
}

// NewRegistry creates a registry over the given backend
func NewRegistry(backend storage.Backend, logger *zap.Logger) *Registry {
	return &Registry{
		backend: backend,
		logger:  logger,
		records: make(map[model.Key]*model.ReplicaRecord),
	}
}

// Recover reloads persisted records. Strength restarts at zero, which is
// the documented behavior: the counter is not durable across restarts.
func (r *Registry) Recover() error {
	keys, err := r.backend.Keys(storage.NamespaceDataInfo)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		blob, err := r.backend.Read(storage.NamespaceDataInfo, k)
		if err != nil {
			r.logger.Warn("Failed to recover record", zap.String("key", k), zap.Error(err))
			continue
		}
		var rec model.ReplicaRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			r.logger.Warn("Failed to decode record", zap.String("key", k), zap.Error(err))
			continue
		}
		r.records[k] = &rec
	}

	r.logger.Info("Replica registry recovered", zap.Int("keys", len(r.records)))
	return nil
}

// Create inserts a new record. Fails with AlreadyExists if the key is known.
func (r *Registry) Create(key model.Key, record *model.ReplicaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; ok {
		return errors.AlreadyExists(key)
	}
	r.records[key] = record.Clone()
	return r.persist(key, record)
}

// Read returns a copy of the record for key
func (r *Registry) Read(key model.Key) (*model.ReplicaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, errors.NotFound(key)
	}
	return record.Clone(), nil
}

// Update overwrites the record for key
func (r *Registry) Update(key model.Key, record *model.ReplicaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return errors.NotFound(key)
	}
	r.records[key] = record.Clone()
	return r.persist(key, record)
}

// Remove deletes the record for key. Removing an unknown key is not an error.
func (r *Registry) Remove(key model.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return nil
	}
	delete(r.records, key)

	if err := r.backend.Remove(storage.NamespaceDataInfo, key); err != nil &&
		!errors.Is(err, errors.ErrCodeNotFound) {
		return errors.Backend("registry remove failed", err)
	}
	return nil
}

// SetStrength mirrors the engine's volatile strength into the in-memory
// record without touching the backend; strength is never persisted.
func (r *Registry) SetStrength(key model.Key, strength float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[key]; ok {
		record.Strength = strength
	}
}

// Stats returns the entry count and the locally replicated count
func (r *Registry) Stats() (entries, replicated int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.Replicated {
			replicated++
		}
	}
	return len(r.records), replicated
}

// persist writes the record to the data_info namespace. Strength is tagged
// out of the JSON form. Callers must hold the write lock.
func (r *Registry) persist(key model.Key, record *model.ReplicaRecord) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return errors.Backend("registry encode failed", err)
	}
	err = r.backend.Update(storage.NamespaceDataInfo, key, blob)
	if errors.Is(err, errors.ErrCodeNotFound) {
		err = r.backend.Create(storage.NamespaceDataInfo, key, blob)
	}
	if err != nil {
		return errors.Backend("registry persist failed", err)
	}
	return nil
}
