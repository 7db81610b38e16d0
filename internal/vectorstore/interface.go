package vectorstore

import "context"

// Store is the tenant-scoped persistence contract. Implementations must
// be safe for concurrent use.
type Store interface {
	// EnsureTenant creates the tenant's collection if it does not exist.
	EnsureTenant(ctx context.Context, tenant string) error

	// Upsert inserts or replaces documents by id in the tenant's collection.
	Upsert(ctx context.Context, tenant string, docs []Document) error

	// Query returns up to k hits ordered by score descending. A tenant
	// without a collection or without documents yields an empty slice,
	// not an error.
	Query(ctx context.Context, tenant string, vector []float32, k int) ([]SearchResult, error)

	// DeleteByID removes documents by id. Missing ids are ignored.
	DeleteByID(ctx context.Context, tenant string, ids []string) error

	// DropTenant removes the tenant's collection and all its documents.
	DropTenant(ctx context.Context, tenant string) error

	// Count returns the number of documents in the tenant's collection.
	Count(ctx context.Context, tenant string) (int, error)

	// Close flushes and releases backend resources.
	Close() error
}
