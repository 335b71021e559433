package driven

// ClientSettingStore persists client-scope settings on this machine only.
// Values are stored as JSON-encoded strings keyed by "namespace.key".
type ClientSettingStore interface {
	// Get retrieves the JSON-encoded value for key.
	// The boolean reports whether the key exists.
	Get(key string) (string, bool, error)

	// Set stores the JSON-encoded value for key, overwriting any previous
	// value. The write is durable when Set returns.
	Set(key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys lists every stored key.
	Keys() ([]string, error)

	// Close releases the underlying storage.
	Close() error
}
