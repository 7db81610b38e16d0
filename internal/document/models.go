package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTenantNotFound indicates a query against a tenant that was never
	// ingested.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDocumentNotFound indicates an operation on an unknown filename.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidFilename indicates a filename unusable as a document key.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrDocumentTooLarge indicates an upload over the configured limit.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrIndexInconsistency indicates the chunk and vector counts diverged
	// during ingest. The operation is aborted, never half-applied.
	ErrIndexInconsistency = errors.New("chunk and vector counts diverge")
)

// Metadata keys attached to every chunk row in the vector store.
const (
	MetaFilename = "filename"
	MetaTitle    = "title"
	MetaSection  = "section"
	MetaVersion  = "version"
	MetaPosition = "position"
)

// Meta describes one ingested document at its active version.
type Meta struct {
	Tenant      string    `json:"tenant"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	ChunkCount  int       `json:"chunk_count"`
	Version     int       `json:"version"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Redactions  int       `json:"redactions"`
	ContentHash string    `json:"content_hash"`
}

// Settings shape per-tenant response behavior.
type Settings struct {
	ShowSources    bool `json:"show_sources"`
	StripCitations bool `json:"strip_citations"`
}

// DefaultSettings apply to tenants without an explicit settings record.
func DefaultSettings() Settings {
	return Settings{ShowSources: true}
}

// Stats summarizes a tenant's indexed corpus.
type Stats struct {
	Tenant     string    `json:"tenant"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	LastUpload time.Time `json:"last_upload"`
}

// Events receives document lifecycle notifications. Implementations must
// return quickly; publishing happens on the ingest path.
type Events interface {
	DocumentIngested(ctx context.Context, tenant, filename string, chunkCount int)
	DocumentUpdated(ctx context.Context, tenant, filename string, chunkCount int)
	DocumentDeleted(ctx context.Context, tenant, filename string)
}

// ValidateFilename checks that a filename is a bare name usable as a
// document key and an on-disk source copy.
func ValidateFilename(filename string) error {
	if filename == "" || len(filename) > 255 {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if filename == "." || filename == ".." || filename != filepath.Base(filename) {
		return fmt.Errorf("%w: %q must be a bare file name", ErrInvalidFilename, filename)
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidFilename, filename)
	}
	return nil
}

// chunkID formats the versioned row id for one chunk.
func chunkID(filename string, version, position int) string {
	return fmt.Sprintf("%s:v%d:%d", filename, version, position)
}

// versionIDs lists every row id of a document version. Chunk positions are
// contiguous from zero.
func versionIDs(filename string, version, count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = chunkID(filename, version, i)
	}
	return ids
}

// parseChunkID splits a row id into filename, version and position. The
// filename may itself contain colons, so the id parses from the right.
func parseChunkID(id string) (filename string, version, position int, ok bool) {
	i := strings.LastIndexByte(id, ':')
	if i < 0 {
		return "", 0, 0, false
	}
	position, err := strconv.Atoi(id[i+1:])
	if err != nil || position < 0 {
		return "", 0, 0, false
	}

	rest := id[:i]
	j := strings.LastIndexByte(rest, ':')
	if j < 0 {
		return "", 0, 0, false
	}
	tag := rest[j+1:]
	if !strings.HasPrefix(tag, "v") {
		return "", 0, 0, false
	}
	version, err = strconv.Atoi(tag[1:])
	if err != nil || version < 1 {
		return "", 0, 0, false
	}

	filename = rest[:j]
	if filename == "" {
		return "", 0, 0, false
	}
	return filename, version, position, true
}

// contentHash fingerprints raw document bytes for idempotent seeding.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
