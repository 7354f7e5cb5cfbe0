package storage

// Namespaces used by the replication controller. data_item holds value
// blobs, data_info holds serialized registry records.
const (
	NamespaceDataItem = "data_item"
	NamespaceDataInfo = "data_info"
)

// Backend is the durable storage contract consumed by the value store and
// the replica registry. Operations are transactional per key; no multi-key
// transactions are required.
type Backend interface {
	// Create stores blob under key. Fails with AlreadyExists if present.
	Create(namespace, key string, blob []byte) error
	// Read returns the blob stored under key, or NotFound.
	Read(namespace, key string) ([]byte, error)
	// Update overwrites the blob under key, or NotFound if absent.
	Update(namespace, key string, blob []byte) error
	// Remove deletes key, or NotFound if absent.
	Remove(namespace, key string) error
	// Keys lists all keys currently present in the namespace.
	Keys(namespace string) ([]string, error)
	// Close releases backend resources.
	Close() error
}
