// Package http provides the ragd HTTP API: chat, tenant document
// lifecycle, project records, profile reload, and the status surface the
// ragctl monitor polls. Handlers speak the wire types of pkg/api/v1 and
// map domain errors onto HTTP status codes; every error body is the JSON
// envelope {"error": "..."}.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	"github.com/fyrsmithlabs/ragd/internal/project"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

// probeTimeout bounds one dependency ping during health and status.
const probeTimeout = 2 * time.Second

// ChatService answers chat messages.
type ChatService interface {
	Handle(ctx context.Context, tenant, message string, topK int, useRAG bool) (rag.Response, error)
}

// DocumentService mediates the tenant document lifecycle.
type DocumentService interface {
	Ingest(ctx context.Context, tenant, filename string, data []byte, contentType string) (document.Meta, error)
	Delete(ctx context.Context, tenant, filename string) error
	List(tenant string) ([]document.Meta, error)
	Stats(tenant string) (document.Stats, error)
	Tenants() []string
}

// Reloader re-reads the model-profile table.
type Reloader interface {
	Reload() error
}

// Probe pings one external dependency.
type Probe func(ctx context.Context) error

// Dependencies are the collaborators the API needs. Chat and Documents
// are required; the rest may be nil (their endpoints degrade or vanish).
type Dependencies struct {
	Chat      ChatService
	Documents DocumentService
	Projects  project.Manager
	Reloader  Reloader
	Probes    map[string]Probe
}

// Server holds the API handlers. Mount it on an echo instance with
// Register.
type Server struct {
	deps     Dependencies
	counters *chatCounters
	metrics  *HTTPMetrics
	logger   *zap.Logger
	version  string
	started  time.Time
}

// NewServer creates the API handler set.
func NewServer(deps Dependencies, logger *zap.Logger, version string) (*Server, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if deps.Documents == nil {
		return nil, fmt.Errorf("document service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:     deps,
		counters: newChatCounters(),
		metrics:  NewHTTPMetrics(logger),
		logger:   logger,
		version:  version,
		started:  time.Now(),
	}, nil
}

// Register mounts all routes and the metrics middleware.
func (s *Server) Register(e *echo.Echo) {
	e.Use(s.metrics.Middleware())

	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/chat", s.handleChat)
	api.GET("/status", s.handleStatus)
	api.POST("/reload", s.handleReload)

	api.GET("/tenants", s.handleTenants)
	api.GET("/tenants/:tenant/stats", s.handleStats)
	api.GET("/tenants/:tenant/documents", s.handleListDocuments)
	api.POST("/tenants/:tenant/documents", s.handleUpload)
	api.PUT("/tenants/:tenant/documents/:filename", s.handleUpdate)
	api.DELETE("/tenants/:tenant/documents/:filename", s.handleDelete)

	if s.deps.Projects != nil {
		api.GET("/tenants/:tenant/projects", s.handleListProjects)
		api.POST("/tenants/:tenant/projects", s.handleCreateProject)
		api.DELETE("/tenants/:tenant/projects/:id", s.handleDeleteProject)
	}
}

func (s *Server) handleChat(c echo.Context) error {
	var req v1.ChatRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	resp, err := s.deps.Chat.Handle(c.Request().Context(), req.TenantID, req.Message, req.TopK, req.RAG())
	if err != nil {
		return s.domainError(c, err)
	}
	s.counters.record(resp)

	return c.JSON(http.StatusOK, toChatResponse(resp))
}

func (s *Server) handleTenants(c echo.Context) error {
	return c.JSON(http.StatusOK, v1.TenantsResponse{Tenants: s.deps.Documents.Tenants()})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.deps.Documents.Stats(c.Param("tenant"))
	if err != nil {
		return s.domainError(c, err)
	}
	return c.JSON(http.StatusOK, v1.StatsResponse{
		Tenant:     stats.Tenant,
		Documents:  stats.Documents,
		Chunks:     stats.Chunks,
		LastUpload: stats.LastUpload,
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	metas, err := s.deps.Documents.List(c.Param("tenant"))
	if err != nil {
		return s.domainError(c, err)
	}
	docs := make([]v1.Document, 0, len(metas))
	for _, meta := range metas {
		docs = append(docs, toDocument(meta))
	}
	return c.JSON(http.StatusOK, docs)
}

// handleUpload ingests a new document. Multipart uploads carry the bytes
// in the "file" form field; JSON bodies use the base64 UploadRequest.
func (s *Server) handleUpload(c echo.Context) error {
	tenant := c.Param("tenant")

	filename, data, contentType, err := readUpload(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	meta, err := s.deps.Documents.Ingest(c.Request().Context(), tenant, filename, data, contentType)
	if err != nil {
		return s.domainError(c, err)
	}
	return c.JSON(http.StatusCreated, toDocument(meta))
}

// handleUpdate replaces a document in place. The body is the raw new
// content; the filename comes from the path.
func (s *Server) handleUpdate(c echo.Context) error {
	tenant := c.Param("tenant")
	filename := c.Param("filename")

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "reading request body")
	}
	if len(data) == 0 {
		return jsonError(c, http.StatusBadRequest, v1.ErrContentRequired.Error())
	}
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "text/plain"
	}

	meta, err := s.deps.Documents.Ingest(c.Request().Context(), tenant, filename, data, contentType)
	if err != nil {
		return s.domainError(c, err)
	}
	return c.JSON(http.StatusOK, toDocument(meta))
}

func (s *Server) handleDelete(c echo.Context) error {
	err := s.deps.Documents.Delete(c.Request().Context(), c.Param("tenant"), c.Param("filename"))
	if err != nil {
		return s.domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReload(c echo.Context) error {
	if s.deps.Reloader == nil {
		return jsonError(c, http.StatusNotImplemented, "profile reload is disabled")
	}
	if err := s.deps.Reloader.Reload(); err != nil {
		s.logger.Error("Profile reload failed", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, err.Error())
	}
	s.logger.Info("Model profiles reloaded")
	return c.JSON(http.StatusOK, v1.ReloadResponse{Status: "reloaded"})
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.deps.Projects.List(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return s.domainError(c, err)
	}
	out := make([]v1.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProject(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req v1.ProjectRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	p, err := s.deps.Projects.Create(c.Request().Context(), c.Param("tenant"), req.Name, req.Description, req.Contact)
	if err != nil {
		return s.domainError(c, err)
	}
	return c.JSON(http.StatusCreated, toProject(p))
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	p, err := s.deps.Projects.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.domainError(c, err)
	}
	// A project is only addressable under its owning tenant's route.
	if p.Tenant != c.Param("tenant") {
		return s.domainError(c, project.ErrProjectNotFound)
	}
	if err := s.deps.Projects.Delete(c.Request().Context(), p.ID); err != nil {
		return s.domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHealth(c echo.Context) error {
	services, healthy := s.probeAll(c.Request().Context())
	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, v1.HealthResponse{
		Status:   status,
		Version:  s.version,
		Services: services,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	services, healthy := s.probeAll(c.Request().Context())
	status := "ok"
	if !healthy {
		status = "degraded"
	}

	counts := v1.StatusCounts{}
	for _, tenant := range s.deps.Documents.Tenants() {
		stats, err := s.deps.Documents.Stats(tenant)
		if err != nil {
			continue
		}
		counts.Tenants++
		counts.Documents += stats.Documents
		counts.Chunks += stats.Chunks
	}

	return c.JSON(http.StatusOK, v1.StatusResponse{
		Status:   status,
		Version:  s.version,
		Services: services,
		Counts:   counts,
		Chat:     s.counters.snapshot(),
		UptimeS:  int64(time.Since(s.started).Seconds()),
	})
}

// probeAll pings every registered dependency with a bounded timeout.
func (s *Server) probeAll(ctx context.Context) (map[string]string, bool) {
	services := make(map[string]string, len(s.deps.Probes))
	healthy := true
	for name, probe := range s.deps.Probes {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			services[name] = err.Error()
			healthy = false
			continue
		}
		services[name] = "ok"
	}
	return services, healthy
}

// domainError maps domain sentinels onto HTTP status codes.
func (s *Server) domainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, document.ErrTenantNotFound),
		errors.Is(err, document.ErrDocumentNotFound),
		errors.Is(err, project.ErrProjectNotFound):
		return jsonError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, document.ErrInvalidFilename),
		errors.Is(err, vectorstore.ErrInvalidTenant),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, project.ErrEmptyProjectName),
		errors.Is(err, project.ErrEmptyProjectID),
		errors.Is(err, project.ErrEmptyTenant):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrDocumentTooLarge):
		return jsonError(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, extract.ErrExtraction), errors.Is(err, extract.ErrUnsupportedType):
		return jsonError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, project.ErrProjectExists):
		return jsonError(c, http.StatusConflict, err.Error())
	default:
		s.logger.Error("Request failed", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "internal error")
	}
}

func jsonError(c echo.Context, code int, message string) error {
	return c.JSON(code, v1.ErrorResponse{Error: message})
}

// readUpload extracts filename, bytes, and content type from a multipart
// or JSON upload body.
func readUpload(c echo.Context) (filename string, data []byte, contentType string, err error) {
	file, ferr := c.FormFile("file")
	if ferr == nil {
		src, err := file.Open()
		if err != nil {
			return "", nil, "", fmt.Errorf("opening upload: %w", err)
		}
		defer src.Close()
		data, err = io.ReadAll(src)
		if err != nil {
			return "", nil, "", fmt.Errorf("reading upload: %w", err)
		}

		filename = c.FormValue("filename")
		if filename == "" {
			filename = file.Filename
		}
		contentType = c.FormValue("content_type")
		if contentType == "" {
			contentType = file.Header.Get(echo.HeaderContentType)
		}
		if contentType == "" {
			contentType = "text/plain"
		}
		return filename, data, contentType, nil
	}

	var req v1.UploadRequest
	if err := c.Bind(&req); err != nil {
		return "", nil, "", fmt.Errorf("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return "", nil, "", err
	}
	contentType = req.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	return req.Filename, req.Content, contentType, nil
}

func toChatResponse(resp rag.Response) v1.ChatResponse {
	sources := make([]v1.Source, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		sources = append(sources, v1.Source{ID: src.ID, Title: src.Title, Score: src.Score})
	}
	return v1.ChatResponse{
		Answer:  resp.Answer,
		Sources: sources,
		RSQ:     resp.RSQ,
		Mode:    resp.Mode,
		Model:   resp.Model,
	}
}

func toDocument(meta document.Meta) v1.Document {
	return v1.Document{
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		ChunkCount:  meta.ChunkCount,
		Version:     meta.Version,
		UploadedAt:  meta.UploadedAt,
		Redactions:  meta.Redactions,
	}
}

func toProject(p *project.Project) v1.Project {
	return v1.Project{
		ID:          p.ID,
		Tenant:      p.Tenant,
		Name:        p.Name,
		Description: p.Description,
		Contact:     p.Contact,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
