// Package vectorstore persists chunk embeddings and serves similarity
// queries. Every tenant gets its own collection; callers never see
// another tenant's rows.
//
// Two providers are available: chromem (embedded, persistent gob files,
// the default) and qdrant (external server over gRPC). Both take
// precomputed vectors; embedding happens upstream.
package vectorstore
