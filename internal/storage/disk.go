package storage

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
)

// DiskBackend stores one file per key under <dataDir>/<namespace>/.
// Filenames are hex-encoded keys, so opaque byte-string keys never collide
// with path separators. Writes go through a temp file and rename, which
// gives per-key atomicity on POSIX filesystems.
type DiskBackend struct {
	dataDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewDiskBackend creates the backend and its namespace directories
func NewDiskBackend(dataDir string, logger *zap.Logger) (*DiskBackend, error) {
	for _, ns := range []string{NamespaceDataItem, NamespaceDataInfo} {
		if err := os.MkdirAll(filepath.Join(dataDir, ns), 0o755); err != nil {
			return nil, errors.Backend("failed to create data directory", err)
		}
	}
	return &DiskBackend{dataDir: dataDir, logger: logger}, nil
}

// Create implements Backend
func (b *DiskBackend) Create(namespace, key string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.path(namespace, key)
	if _, err := os.Stat(path); err == nil {
		return errors.AlreadyExists(key)
	}
	return b.write(path, blob)
}

// Read implements Backend
func (b *DiskBackend) Read(namespace, key string) ([]byte, error) {
	blob, err := os.ReadFile(b.path(namespace, key))
	if os.IsNotExist(err) {
		return nil, errors.NotFound(key)
	}
	if err != nil {
		return nil, errors.Backend("failed to read blob", err)
	}
	return blob, nil
}

// Update implements Backend
func (b *DiskBackend) Update(namespace, key string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.path(namespace, key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.NotFound(key)
	}
	return b.write(path, blob)
}

// Remove implements Backend
func (b *DiskBackend) Remove(namespace, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := os.Remove(b.path(namespace, key))
	if os.IsNotExist(err) {
		return errors.NotFound(key)
	}
	if err != nil {
		return errors.Backend("failed to remove blob", err)
	}
	return nil
}

// Keys implements Backend
func (b *DiskBackend) Keys(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.dataDir, namespace))
	if err != nil {
		return nil, errors.Backend("failed to list namespace", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		decoded, err := hex.DecodeString(e.Name())
		if err != nil {
			b.logger.Warn("Skipping unparseable file in data directory",
				zap.String("namespace", namespace),
				zap.String("file", e.Name()))
			continue
		}
		keys = append(keys, string(decoded))
	}
	return keys, nil
}

// Close implements Backend
func (b *DiskBackend) Close() error {
	return nil
}

func (b *DiskBackend) path(namespace, key string) string {
	return filepath.Join(b.dataDir, namespace, hex.EncodeToString([]byte(key)))
}

func (b *DiskBackend) write(path string, blob []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return errors.Backend("failed to write blob", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Backend("failed to publish blob", err)
	}
	return nil
}
