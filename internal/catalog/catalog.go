package catalog

// NodeCatalog defines the interface for node catalog operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NodeCatalog interface {
	Upsert(n NodeRow, body string, refs []string) error
	Delete(id string) error
	GetChecksum(id string) (string, error)
	Get(id string) (*NodeRow, error)
	List(limit, offset int, nodeType, sort string) ([]NodeRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	References(asset string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NodeCatalog at compile time.
var _ NodeCatalog = (*DB)(nil)
