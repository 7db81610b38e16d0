package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("ragd.vectorstore.qdrant")

// pointNamespace seeds deterministic point UUIDs so re-ingesting the
// same chunk id overwrites the existing point instead of duplicating it.
var pointNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// APIKey authenticates against managed Qdrant deployments.
	// Empty for local instances.
	APIKey string

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedding provider's output dimension.
	VectorSize uint64

	// Distance is the similarity metric for vector search.
	// Default: Cosine
	Distance qdrant.Distance

	// MaxRetries is the maximum number of retry attempts for
	// transient failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry. Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before the
	// circuit opens. Default: 5
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 768
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// isTransientError reports whether an error should be retried.
// True for network timeouts and temporary unavailability, false for
// invalid arguments, not found, permission denied.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against Qdrant's native gRPC interface.
//
// gRPC (port 6334) avoids the HTTP layer's payload limits and keeps
// binary protobuf encoding for large document batches. Each tenant maps
// to its own collection, so queries never cross tenant boundaries.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// collections caches collection existence to avoid repeated checks.
	collections sync.Map

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, insecure for production",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	store := &QdrantStore{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.healthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return store, nil
}

// healthCheck performs a health check on the Qdrant connection.
func (s *QdrantStore) healthCheck(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("health check failed: %w", err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !isTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// pointID derives a stable UUID from tenant and chunk id so upserting
// the same id replaces the existing point.
func pointID(tenant, id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(tenant+"/"+id)).String()
}

// EnsureTenant creates the tenant's collection if it does not exist.
func (s *QdrantStore) EnsureTenant(ctx context.Context, tenant string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.EnsureTenant")
	defer span.End()
	defer recordOperation("qdrant", "ensure_tenant", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}

	name := collectionName(tenant)
	if _, ok := s.collections.Load(name); ok {
		span.SetStatus(codes.Ok, "cached")
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("checking collection %s: %w", name, err)
	}

	if !exists {
		err = s.retryOperation(ctx, "create collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     s.config.VectorSize,
					Distance: s.config.Distance,
				}),
			})
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
		s.logger.Info("created collection",
			zap.String("tenant", tenant),
			zap.String("collection", name),
		)
	}

	s.collections.Store(name, true)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert inserts or replaces documents by id.
func (s *QdrantStore) Upsert(ctx context.Context, tenant string, docs []Document) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	defer recordOperation("qdrant", "upsert", time.Now(), &err)

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

	if err = s.EnsureTenant(ctx, tenant); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if uint64(len(doc.Vector)) != s.config.VectorSize {
			err = fmt.Errorf("%w: document %s has dimension %d, store expects %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), s.config.VectorSize)
			span.RecordError(err)
			return err
		}

		payload := map[string]any{
			"content": doc.Content,
			"id":      doc.ID,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(tenant, doc.ID)),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	name := collectionName(tenant)
	err = s.retryOperation(ctx, "upsert points", func() error {
		_, opErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return opErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting documents: %w", err)
	}

	DocumentsUpserted.WithLabelValues("qdrant").Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted documents",
		zap.String("tenant", tenant),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns up to k hits ordered by score descending.
func (s *QdrantStore) Query(ctx context.Context, tenant string, vector []float32, k int) (_ []SearchResult, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	defer recordOperation("qdrant", "query", time.Now(), &err)

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
	if uint64(len(vector)) != s.config.VectorSize {
		err = fmt.Errorf("%w: query has dimension %d, store expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
		return nil, err
	}

	name := collectionName(tenant)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		span.SetStatus(codes.Ok, "no collection")
		return []SearchResult{}, nil
	}

	var points []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query points", func() error {
		var opErr error
		points, opErr = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return opErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying tenant %s: %w", tenant, err)
	}

	hits := make([]SearchResult, 0, len(points))
	for _, point := range points {
		hit := SearchResult{
			Score:    point.Score,
			Metadata: make(map[string]string),
		}
		for key, value := range point.Payload {
			switch key {
			case "content":
				hit.Content = value.GetStringValue()
			case "id":
				hit.ID = value.GetStringValue()
			default:
				hit.Metadata[key] = value.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}
	sortResults(hits)

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteByID removes documents by id. Missing ids are ignored.
func (s *QdrantStore) DeleteByID(ctx context.Context, tenant string, ids []string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByID")
	defer span.End()
	defer recordOperation("qdrant", "delete", time.Now(), &err)

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

	name := collectionName(tenant)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	// Match points by the chunk id stored in the payload.
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "id",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keywords{
								Keywords: &qdrant.RepeatedStrings{Strings: ids},
							},
						},
					},
				},
			},
		},
	}

	err = s.retryOperation(ctx, "delete points", func() error {
		_, opErr := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
			},
			Wait: qdrant.PtrOf(true),
		})
		return opErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting documents for tenant %s: %w", tenant, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DropTenant removes the tenant's collection entirely.
func (s *QdrantStore) DropTenant(ctx context.Context, tenant string) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DropTenant")
	defer span.End()
	defer recordOperation("qdrant", "drop_tenant", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return err
	}

	name := collectionName(tenant)
	if err = s.client.DeleteCollection(ctx, name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("dropping tenant %s: %w", tenant, err)
	}

	s.collections.Delete(name)
	span.SetStatus(codes.Ok, "success")
	s.logger.Info("dropped tenant collection", zap.String("tenant", tenant))
	return nil
}

// Count returns the number of documents in the tenant's collection.
func (s *QdrantStore) Count(ctx context.Context, tenant string) (_ int, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Count")
	defer span.End()
	defer recordOperation("qdrant", "count", time.Now(), &err)

	span.SetAttributes(attribute.String("tenant", tenant))

	if err = ValidateTenantID(tenant); err != nil {
		span.RecordError(err)
		return 0, err
	}

	name := collectionName(tenant)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return 0, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting documents for tenant %s: %w", tenant, err)
	}

	return int(count), nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)
