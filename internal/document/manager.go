// Package document owns the per-tenant document lifecycle: ingest through
// extraction, redaction, chunking, and embedding into the vector store,
// versioned replacement of existing documents, deletion, and the metadata
// needed to answer listing and stats queries.
//
// Documents are stored as versioned chunk rows. An update builds the new
// version alongside the old one and flips the active version only after
// every new row is written, so readers never observe a half-replaced
// document.
package document

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	"github.com/fyrsmithlabs/ragd/internal/redact"
	"github.com/fyrsmithlabs/ragd/internal/topic"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Config holds document manager settings.
type Config struct {
	// DataDir is the root directory for per-tenant metadata and source
	// copies.
	DataDir string

	// MaxDocumentBytes caps the size of a single upload.
	MaxDocumentBytes int64

	// EmbedTimeout bounds the embedding call of one ingest.
	EmbedTimeout time.Duration

	// Tenants maps tenant ids to non-default response settings.
	Tenants map[string]Settings
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data/documents"
	}
	if c.MaxDocumentBytes == 0 {
		c.MaxDocumentBytes = 10 << 20
	}
	if c.EmbedTimeout == 0 {
		c.EmbedTimeout = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("max_document_bytes must be positive, got %d", c.MaxDocumentBytes)
	}
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("embed_timeout must be positive, got %s", c.EmbedTimeout)
	}
	for tenant := range c.Tenants {
		if err := vectorstore.ValidateTenantID(tenant); err != nil {
			return err
		}
	}
	return nil
}

// Dependencies are the collaborators a Manager needs. Store, Embedder,
// and Extractor are required; Redactor and Events may be nil.
type Dependencies struct {
	Store     vectorstore.Store
	Embedder  embeddings.Provider
	Extractor extract.Extractor
	Redactor  *redact.Redactor
	Events    Events
}

// tenantState is the in-memory view of one tenant's corpus.
type tenantState struct {
	// updateMu serializes ingest and delete for the tenant so concurrent
	// writers cannot interleave version flips.
	updateMu sync.Mutex

	mu       sync.RWMutex
	docs     map[string]*Meta
	settings Settings
	topics   *topic.Index
}

func newTenantState(settings Settings) *tenantState {
	return &tenantState{
		docs:     make(map[string]*Meta),
		settings: settings,
		topics:   topic.NewIndex(),
	}
}

func (s *tenantState) document(filename string) (Meta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.docs[filename]
	if !ok {
		return Meta{}, false
	}
	return *meta, true
}

func (s *tenantState) setDocument(meta Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[meta.Filename] = &meta
}

func (s *tenantState) removeDocument(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, filename)
}

func (s *tenantState) documentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *tenantState) documents() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Meta, 0, len(s.docs))
	for _, meta := range s.docs {
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

func (s *tenantState) stats(tenant string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Tenant: tenant, Documents: len(s.docs)}
	for _, meta := range s.docs {
		st.Chunks += meta.ChunkCount
		if meta.UploadedAt.After(st.LastUpload) {
			st.LastUpload = meta.UploadedAt
		}
	}
	return st
}

// Manager coordinates the document lifecycle across tenants.
type Manager struct {
	config    Config
	store     vectorstore.Store
	embedder  embeddings.Provider
	extractor extract.Extractor
	redactor  *redact.Redactor
	events    Events
	chunker   *chunker.Chunker
	logger    *zap.Logger

	mu      sync.RWMutex
	tenants map[string]*tenantState
}

// NewManager creates a Manager and restores tenant metadata from the data
// directory.
func NewManager(config Config, deps Dependencies, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document config: %w", err)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}

	m := &Manager{
		config:    config,
		store:     deps.Store,
		embedder:  deps.Embedder,
		extractor: deps.Extractor,
		redactor:  deps.Redactor,
		events:    deps.Events,
		chunker:   chunker.New(),
		logger:    logger,
		tenants:   make(map[string]*tenantState),
	}
	if err := m.loadTenants(); err != nil {
		return nil, fmt.Errorf("restoring document metadata: %w", err)
	}
	return m, nil
}

// settingsFor returns the configured settings for a tenant, or defaults.
func (m *Manager) settingsFor(tenant string) Settings {
	if s, ok := m.config.Tenants[tenant]; ok {
		return s
	}
	return DefaultSettings()
}

// resolve returns the state of a known tenant.
func (m *Manager) resolve(tenant string) (*tenantState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.tenants[tenant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTenantNotFound, tenant)
	}
	return state, nil
}

// getOrCreate returns the tenant's state, registering it on first ingest.
func (m *Manager) getOrCreate(tenant string) *tenantState {
	m.mu.RLock()
	state, ok := m.tenants[tenant]
	m.mu.RUnlock()
	if ok {
		return state
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok = m.tenants[tenant]; ok {
		return state
	}
	state = newTenantState(m.settingsFor(tenant))
	m.tenants[tenant] = state
	return state
}

// Resolve reports whether a tenant is known. Unknown tenants are never
// registered by read paths.
func (m *Manager) Resolve(tenant string) error {
	_, err := m.resolve(tenant)
	return err
}

// Settings returns the response settings of a known tenant.
func (m *Manager) Settings(tenant string) (Settings, error) {
	state, err := m.resolve(tenant)
	if err != nil {
		return Settings{}, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.settings, nil
}

// List returns the tenant's documents ordered by filename.
func (m *Manager) List(tenant string) ([]Meta, error) {
	state, err := m.resolve(tenant)
	if err != nil {
		return nil, err
	}
	return state.documents(), nil
}

// Get returns the metadata of one document.
func (m *Manager) Get(tenant, filename string) (Meta, error) {
	state, err := m.resolve(tenant)
	if err != nil {
		return Meta{}, err
	}
	meta, ok := state.document(filename)
	if !ok {
		return Meta{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, tenant, filename)
	}
	return meta, nil
}

// Stats summarizes the tenant's corpus.
func (m *Manager) Stats(tenant string) (Stats, error) {
	state, err := m.resolve(tenant)
	if err != nil {
		return Stats{}, err
	}
	return state.stats(tenant), nil
}

// Tenants lists known tenant ids in lexical order.
func (m *Manager) Tenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tenants))
	for tenant := range m.tenants {
		out = append(out, tenant)
	}
	sort.Strings(out)
	return out
}

// Search queries the tenant's collection and drops hits from superseded
// document versions. During an update old rows remain queryable until the
// flip; the filter hides any that linger after it.
func (m *Manager) Search(ctx context.Context, tenant string, vector []float32, k int) ([]vectorstore.SearchResult, error) {
	state, err := m.resolve(tenant)
	if err != nil {
		return nil, err
	}

	hits, err := m.store.Query(ctx, tenant, vector, k)
	if err != nil {
		return nil, fmt.Errorf("querying tenant %s: %w", tenant, err)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	active := hits[:0]
	for _, hit := range hits {
		filename, version, _, ok := parseChunkID(hit.ID)
		if !ok {
			continue
		}
		meta, ok := state.docs[filename]
		if !ok || meta.Version != version {
			continue
		}
		active = append(active, hit)
	}
	return active, nil
}

// TopicBest returns the lexically closest document for a query, for use
// when semantic retrieval yields nothing. Unknown tenants match nothing.
func (m *Manager) TopicBest(tenant, query string) (topic.Match, bool) {
	state, err := m.resolve(tenant)
	if err != nil {
		return topic.Match{}, false
	}
	return state.topics.Best(query)
}
