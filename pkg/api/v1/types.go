// Package v1 defines the wire types of the ragd HTTP API. The daemon's
// handlers and the ragctl client share these structs so both sides agree
// on field names without duplicating JSON tags.
package v1

import "time"

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
	// TopK overrides the server-side retrieval depth when positive.
	TopK int `json:"top_k,omitempty"`
	// UseRAG disables retrieval when explicitly false. Absent means true.
	UseRAG *bool `json:"use_rag,omitempty"`
}

// Validate checks required fields.
func (r ChatRequest) Validate() error {
	if r.TenantID == "" {
		return ErrTenantRequired
	}
	if r.Message == "" {
		return ErrMessageRequired
	}
	return nil
}

// RAG reports the effective use_rag value.
func (r ChatRequest) RAG() bool {
	return r.UseRAG == nil || *r.UseRAG
}

// Source identifies a retrieved chunk an answer is grounded on.
type Source struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	RSQ     float64  `json:"rsq"`
	Mode    string   `json:"mode"`
	Model   string   `json:"model,omitempty"`
}

// Document describes one ingested document.
type Document struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	ChunkCount  int       `json:"chunk_count"`
	Version     int       `json:"version"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Redactions  int       `json:"redactions,omitempty"`
}

// UploadRequest is the JSON request body for document uploads. Content is
// base64-encoded by encoding/json. Multipart uploads bypass this type.
type UploadRequest struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate checks required fields.
func (r UploadRequest) Validate() error {
	if r.Filename == "" {
		return ErrFilenameRequired
	}
	if len(r.Content) == 0 {
		return ErrContentRequired
	}
	return nil
}

// StatsResponse summarizes a tenant's indexed corpus.
type StatsResponse struct {
	Tenant     string    `json:"tenant"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	LastUpload time.Time `json:"last_upload"`
}

// TenantsResponse lists known tenant ids.
type TenantsResponse struct {
	Tenants []string `json:"tenants"`
}

// Project is an auxiliary record attached to a tenant, outside the
// retrieval pipeline.
type Project struct {
	ID          string    `json:"id"`
	Tenant      string    `json:"tenant"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Contact     string    `json:"contact,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectRequest is the request body for project creation.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Validate checks required fields.
func (r ProjectRequest) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

// StatusCounts aggregates corpus size across tenants.
type StatusCounts struct {
	Tenants   int `json:"tenants"`
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// ChatCounters aggregates answered questions since process start.
type ChatCounters struct {
	Answered  int64   `json:"answered"`
	Greetings int64   `json:"greetings"`
	RAG       int64   `json:"rag"`
	Fallbacks int64   `json:"fallbacks"`
	AvgRSQ    float64 `json:"avg_rsq"`
	LastRSQ   float64 `json:"last_rsq"`
}

// StatusResponse is the response body for GET /api/v1/status, consumed by
// the ragctl monitor dashboard.
type StatusResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services"`
	Counts   StatusCounts      `json:"counts"`
	Chat     ChatCounters      `json:"chat"`
	UptimeS  int64             `json:"uptime_seconds"`
}

// ReloadResponse is the response body for POST /api/v1/reload.
type ReloadResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error envelope of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
