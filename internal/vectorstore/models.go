package vectorstore

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTenant indicates a tenant id that fails validation.
	ErrInvalidTenant = errors.New("invalid tenant id")

	// ErrEmptyDocuments indicates an upsert with no documents.
	ErrEmptyDocuments = errors.New("documents cannot be empty")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Document is one chunk row: precomputed vector plus payload.
type Document struct {
	// ID is the versioned chunk id, unique within the tenant.
	ID string

	// Content is the chunk text (title + body).
	Content string

	// Vector is the embedding for Content.
	Vector []float32

	// Metadata carries filename, title, section id, version, and position.
	Metadata map[string]string
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Position returns the chunk position from metadata, or a large value
// when absent so unmarked rows sort last among ties.
func (r SearchResult) Position() int {
	if s, ok := r.Metadata["position"]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return int(^uint(0) >> 1)
}

// tenantIDPattern constrains tenant ids so derived collection names stay
// valid in every backend.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateTenantID checks a tenant id against the allowed pattern.
func ValidateTenantID(tenant string) error {
	if !tenantIDPattern.MatchString(tenant) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidTenant, tenant, tenantIDPattern.String())
	}
	return nil
}

// collectionName derives the backend collection name for a tenant.
func collectionName(tenant string) string {
	return "documents_" + tenant
}

// sortResults orders hits by score descending; ties resolve by chunk
// position, then id, so equal scores keep document order.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		pi, pj := results[i].Position(), results[j].Position()
		if pi != pj {
			return pi < pj
		}
		return results[i].ID < results[j].ID
	})
}
