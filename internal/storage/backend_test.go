package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/errors"
)

// backendContract exercises the Backend contract against an implementation
func backendContract(t *testing.T, backend Backend) {
	t.Helper()

	// Create then read
	require.NoError(t, backend.Create(NamespaceDataItem, "k1", []byte("v1")))
	blob, err := backend.Read(NamespaceDataItem, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), blob)

	// Create on existing key fails
	err = backend.Create(NamespaceDataItem, "k1", []byte("v2"))
	assert.True(t, errors.Is(err, errors.ErrCodeAlreadyExists))

	// Namespaces are independent
	_, err = backend.Read(NamespaceDataInfo, "k1")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	// Update overwrites
	require.NoError(t, backend.Update(NamespaceDataItem, "k1", []byte("v2")))
	blob, err = backend.Read(NamespaceDataItem, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), blob)

	// Update on missing key fails
	err = backend.Update(NamespaceDataItem, "missing", []byte("v"))
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	// Keys lists the namespace
	require.NoError(t, backend.Create(NamespaceDataItem, "k2", []byte("v")))
	keys, err := backend.Keys(NamespaceDataItem)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

	// Remove
	require.NoError(t, backend.Remove(NamespaceDataItem, "k1"))
	_, err = backend.Read(NamespaceDataItem, "k1")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	err = backend.Remove(NamespaceDataItem, "k1")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestMemoryBackendContract(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()
	backendContract(t, backend)
}

func TestDiskBackendContract(t *testing.T) {
	backend, err := NewDiskBackend(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer backend.Close()
	backendContract(t, backend)
}

func TestDiskBackendSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	backend, err := NewDiskBackend(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, backend.Create(NamespaceDataItem, "binary\x00key", []byte("v")))
	require.NoError(t, backend.Close())

	reopened, err := NewDiskBackend(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	blob, err := reopened.Read(NamespaceDataItem, "binary\x00key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), blob)

	keys, err := reopened.Keys(NamespaceDataItem)
	require.NoError(t, err)
	assert.Equal(t, []string{"binary\x00key"}, keys)
}

func TestMemoryBackendCopiesBlobs(t *testing.T) {
	backend := NewMemoryBackend()

	blob := []byte("original")
	require.NoError(t, backend.Create(NamespaceDataItem, "k", blob))
	blob[0] = 'X'

	stored, err := backend.Read(NamespaceDataItem, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)
}
