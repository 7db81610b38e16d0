package project

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager provides CRUD operations for project records.
type Manager interface {
	// Create creates a new project for a tenant. Names are unique per
	// tenant.
	Create(ctx context.Context, tenant, name, description, contact string) (*Project, error)

	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (*Project, error)

	// List returns a tenant's projects ordered by creation time.
	List(ctx context.Context, tenant string) ([]*Project, error)

	// Delete removes a project by ID.
	Delete(ctx context.Context, id string) error

	// GetByName finds a tenant's project by name.
	GetByName(ctx context.Context, tenant, name string) (*Project, error)
}

// manager implements Manager with in-memory storage.
type manager struct {
	mu       sync.RWMutex
	projects map[string]*Project // id -> project
	byName   map[string]*Project // tenant + "\x00" + name -> project
}

// NewManager creates a project manager with in-memory storage.
func NewManager() Manager {
	return &manager{
		projects: make(map[string]*Project),
		byName:   make(map[string]*Project),
	}
}

func nameKey(tenant, name string) string {
	return tenant + "\x00" + name
}

// Create creates a new project.
func (m *manager) Create(_ context.Context, tenant, name, description, contact string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byName[nameKey(tenant, name)]; ok {
		return nil, fmt.Errorf("%w: %q is project %s", ErrProjectExists, name, existing.ID)
	}

	project, err := NewProject(tenant, name)
	if err != nil {
		return nil, err
	}
	project.Description = description
	project.Contact = contact

	m.projects[project.ID] = project
	m.byName[nameKey(tenant, name)] = project

	return copyOf(project), nil
}

// Get retrieves a project by ID.
func (m *manager) Get(_ context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, ErrEmptyProjectID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	project, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return copyOf(project), nil
}

// List returns a tenant's projects ordered by creation time, then name.
func (m *manager) List(_ context.Context, tenant string) ([]*Project, error) {
	if tenant == "" {
		return nil, ErrEmptyTenant
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*Project, 0)
	for _, p := range m.projects {
		if p.Tenant == tenant {
			projects = append(projects, copyOf(p))
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// Delete removes a project by ID.
func (m *manager) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrEmptyProjectID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	project, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	delete(m.projects, id)
	delete(m.byName, nameKey(project.Tenant, project.Name))
	return nil
}

// GetByName finds a tenant's project by name.
func (m *manager) GetByName(_ context.Context, tenant, name string) (*Project, error) {
	if tenant == "" {
		return nil, ErrEmptyTenant
	}
	if name == "" {
		return nil, ErrEmptyProjectName
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	project, ok := m.byName[nameKey(tenant, name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return copyOf(project), nil
}

// copyOf shields internal state from caller mutation.
func copyOf(p *Project) *Project {
	c := *p
	return &c
}
