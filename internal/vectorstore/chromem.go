package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("ragd.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means
	// in-memory only (no persistence across restarts).
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.VectorSize == 0 {
		c.VectorSize = 768
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store with chromem-go, an embeddable pure-Go
// vector database persisting to gob files. No external service needed.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedFunc guards against chromem falling back to its default remote
// embedder: every document and query here carries a precomputed vector.
func noEmbedFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("vectorstore requires precomputed vectors")
}

// EnsureTenant creates the tenant's collection if it does not exist.
func (s *ChromemStore) EnsureTenant(ctx context.Context, tenant string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.EnsureTenant")
	defer span.End()
	defer recordOperation("chromem", "ensure_tenant", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}

	if _, err = s.db.GetOrCreateCollection(collectionName(tenant), nil, noEmbedFunc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection for tenant %s: %w", tenant, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert inserts or replaces documents by id.
func (s *ChromemStore) Upsert(ctx context.Context, tenant string, docs []Document) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer recordOperation("chromem", "upsert", time.Now(), &err)

	span.SetAttributes(
		attribute.String("tenant", tenant),
		attribute.Int("document_count", len(docs)),
	)

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}
	if len(docs) == 0 {
		err = ErrEmptyDocuments
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Vector) != s.config.VectorSize {
			err = fmt.Errorf("%w: document %s has dimension %d, store expects %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), s.config.VectorSize)
			span.RecordError(err)
			return err
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Vector,
		}
	}

	collection, err := s.db.GetOrCreateCollection(collectionName(tenant), nil, noEmbedFunc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection for tenant %s: %w", tenant, err)
	}

	// Concurrency 1: vectors are precomputed, nothing to parallelize.
	if err = collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting documents: %w", err)
	}

	DocumentsUpserted.WithLabelValues("chromem").Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted documents",
		zap.String("tenant", tenant),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns up to k hits ordered by score descending.
func (s *ChromemStore) Query(ctx context.Context, tenant string, vector []float32, k int) (_ []SearchResult, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer recordOperation("chromem", "query", time.Now(), &err)

	span.SetAttributes(
		attribute.String("tenant", tenant),
		attribute.Int("k", k),
	)

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if k <= 0 {
		err = fmt.Errorf("k must be positive, got %d", k)
		return nil, err
	}
	if len(vector) != s.config.VectorSize {
		err = fmt.Errorf("%w: query has dimension %d, store expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
		return nil, err
	}

	collection := s.db.GetCollection(collectionName(tenant), noEmbedFunc)
	if collection == nil {
		span.SetStatus(codes.Ok, "no collection")
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		span.SetStatus(codes.Ok, "empty collection")
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying tenant %s: %w", tenant, err)
	}

	hits := make([]SearchResult, len(results))
	for i, r := range results {
		hits[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	sortResults(hits)

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteByID removes documents by id. Missing ids are ignored.
func (s *ChromemStore) DeleteByID(ctx context.Context, tenant string, ids []string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByID")
	defer span.End()
	defer recordOperation("chromem", "delete", time.Now(), &err)

	span.SetAttributes(
		attribute.String("tenant", tenant),
		attribute.Int("id_count", len(ids)),
	)

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	collection := s.db.GetCollection(collectionName(tenant), noEmbedFunc)
	if collection == nil {
		return nil
	}

	if err = collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting documents for tenant %s: %w", tenant, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DropTenant removes the tenant's collection entirely.
func (s *ChromemStore) DropTenant(ctx context.Context, tenant string) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DropTenant")
	defer span.End()
	defer recordOperation("chromem", "drop_tenant", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}

	if err = s.db.DeleteCollection(collectionName(tenant)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("dropping tenant %s: %w", tenant, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("dropped tenant collection", zap.String("tenant", tenant))
	return nil
}

// Count returns the number of documents in the tenant's collection.
func (s *ChromemStore) Count(ctx context.Context, tenant string) (_ int, err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()
	defer recordOperation("chromem", "count", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return 0, err
	}

	collection := s.db.GetCollection(collectionName(tenant), noEmbedFunc)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Close is a no-op: chromem persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

var _ Store = (*ChromemStore)(nil)
