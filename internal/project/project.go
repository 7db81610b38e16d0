package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectExists    = errors.New("project already exists")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrEmptyProjectID   = errors.New("project ID cannot be empty")
	ErrEmptyProjectName = errors.New("project name cannot be empty")
	ErrEmptyTenant      = errors.New("tenant cannot be empty")
)

// Project is a freeform record attached to a tenant. It shares the tenant
// concept with the document corpus but plays no part in retrieval.
type Project struct {
	// ID is the unique project identifier (UUID).
	ID string `json:"id"`

	// Tenant owns the project.
	Tenant string `json:"tenant"`

	// Name is the required human-readable project name.
	Name string `json:"name"`

	// Description is optional freeform text.
	Description string `json:"description,omitempty"`

	// Contact is an optional responsible-person reference.
	Contact string `json:"contact,omitempty"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the project was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a project with a generated UUID.
func NewProject(tenant, name string) (*Project, error) {
	if tenant == "" {
		return nil, ErrEmptyTenant
	}
	if name == "" {
		return nil, ErrEmptyProjectName
	}

	now := time.Now()
	return &Project{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks if the project has valid fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return ErrInvalidProjectID
	}
	if p.Tenant == "" {
		return ErrEmptyTenant
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	return nil
}
