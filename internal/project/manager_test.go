package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Create(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	p, err := m.Create(ctx, "acme", "Website Relaunch", "Neue Firmenwebsite", "mueller@acme.example")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "acme", p.Tenant)
	assert.Equal(t, "Neue Firmenwebsite", p.Description)
	assert.Equal(t, "mueller@acme.example", p.Contact)
}

func TestManager_Create_DuplicateNamePerTenant(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	_, err := m.Create(ctx, "acme", "Website Relaunch", "", "")
	require.NoError(t, err)

	_, err = m.Create(ctx, "acme", "Website Relaunch", "", "")
	assert.ErrorIs(t, err, ErrProjectExists)

	// The same name under another tenant is a different project.
	_, err = m.Create(ctx, "globex", "Website Relaunch", "", "")
	assert.NoError(t, err)
}

func TestManager_Create_Validation(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	_, err := m.Create(ctx, "", "Website Relaunch", "", "")
	assert.ErrorIs(t, err, ErrEmptyTenant)

	_, err = m.Create(ctx, "acme", "", "", "")
	assert.ErrorIs(t, err, ErrEmptyProjectName)
}

func TestManager_Get(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "acme", "Website Relaunch", "", "")
	require.NoError(t, err)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = m.Get(ctx, "11111111-2222-3333-4444-555555555555")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = m.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProjectID)
}

func TestManager_Get_ReturnsCopy(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "acme", "Website Relaunch", "", "")
	require.NoError(t, err)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Website Relaunch", again.Name)
}

func TestManager_List_TenantScoped(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	_, err := m.Create(ctx, "acme", "Erstes Projekt", "", "")
	require.NoError(t, err)
	_, err = m.Create(ctx, "acme", "Zweites Projekt", "", "")
	require.NoError(t, err)
	_, err = m.Create(ctx, "globex", "Fremdes Projekt", "", "")
	require.NoError(t, err)

	projects, err := m.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, projects, 2)
	for _, p := range projects {
		assert.Equal(t, "acme", p.Tenant)
	}

	empty, err := m.List(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "acme", "Website Relaunch", "", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, created.ID))

	_, err = m.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	// The name is free again after deletion.
	_, err = m.Create(ctx, "acme", "Website Relaunch", "", "")
	assert.NoError(t, err)

	assert.ErrorIs(t, m.Delete(ctx, created.ID), ErrProjectNotFound)
}

func TestManager_GetByName(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "acme", "Website Relaunch", "", "")
	require.NoError(t, err)

	got, err := m.GetByName(ctx, "acme", "Website Relaunch")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = m.GetByName(ctx, "globex", "Website Relaunch")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
