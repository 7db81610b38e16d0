package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// tenantFile is the on-disk metadata record of one tenant.
type tenantFile struct {
	Documents map[string]Meta `json:"documents"`
}

func (m *Manager) tenantDir(tenant string) string {
	return filepath.Join(m.config.DataDir, tenant)
}

func (m *Manager) metaPath(tenant string) string {
	return filepath.Join(m.tenantDir(tenant), "meta.json")
}

func (m *Manager) sourcePath(tenant, filename string) string {
	return filepath.Join(m.tenantDir(tenant), "sources", filename)
}

// saveMeta persists the tenant's document records.
func (m *Manager) saveMeta(tenant string, state *tenantState) error {
	file := tenantFile{Documents: make(map[string]Meta)}
	for _, meta := range state.documents() {
		file.Documents[meta.Filename] = meta
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tenant metadata: %w", err)
	}
	if err := os.MkdirAll(m.tenantDir(tenant), 0o755); err != nil {
		return fmt.Errorf("creating tenant directory: %w", err)
	}
	return writeFileAtomic(m.metaPath(tenant), data, 0o600)
}

// saveSource persists the extracted, redacted text of a document. The raw
// upload is never written to disk, so secrets stay out of the data
// directory and topics rebuild at startup without the extraction service.
func (m *Manager) saveSource(tenant, filename string, text []byte) error {
	dir := filepath.Join(m.tenantDir(tenant), "sources")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sources directory: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, filename), text, 0o600)
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a torn file behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}

// loadTenants restores tenant states from the data directory. Unreadable
// tenants are skipped with a warning; the daemon still starts.
func (m *Manager) loadTenants() error {
	entries, err := os.ReadDir(m.config.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading data directory: %w", err)
	}

	var tenants, documents int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tenant := entry.Name()
		if err := vectorstore.ValidateTenantID(tenant); err != nil {
			m.logger.Warn("Skipping data directory with invalid tenant id",
				zap.String("dir", tenant),
				zap.Error(err))
			continue
		}

		data, err := os.ReadFile(m.metaPath(tenant))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			m.logger.Warn("Skipping unreadable tenant metadata",
				zap.String("tenant", tenant),
				zap.Error(err))
			continue
		}

		var file tenantFile
		if err := json.Unmarshal(data, &file); err != nil {
			m.logger.Warn("Skipping corrupt tenant metadata",
				zap.String("tenant", tenant),
				zap.Error(err))
			continue
		}

		state := newTenantState(m.settingsFor(tenant))
		for filename, meta := range file.Documents {
			meta := meta
			meta.Tenant = tenant
			meta.Filename = filename
			state.docs[filename] = &meta
			documents++
		}
		m.rebuildTopics(tenant, state)
		m.tenants[tenant] = state
		tenants++
	}

	if tenants > 0 {
		m.logger.Info("Restored tenant metadata",
			zap.Int("tenants", tenants),
			zap.Int("documents", documents))
	}
	return nil
}

// rebuildTopics repopulates the lexical index from saved source text. A
// source copy that no longer matches the stored chunk count is skipped so
// topic ids always mirror stored rows.
func (m *Manager) rebuildTopics(tenant string, state *tenantState) {
	for _, meta := range state.documents() {
		data, err := os.ReadFile(m.sourcePath(tenant, meta.Filename))
		if err != nil {
			m.logger.Warn("No source copy for topic index",
				zap.String("tenant", tenant),
				zap.String("filename", meta.Filename),
				zap.Error(err))
			continue
		}
		chunks := m.chunker.Split(string(data))
		if len(chunks) != meta.ChunkCount {
			m.logger.Warn("Source copy out of sync with stored chunks",
				zap.String("tenant", tenant),
				zap.String("filename", meta.Filename),
				zap.Int("stored", meta.ChunkCount),
				zap.Int("rebuilt", len(chunks)))
			continue
		}
		for _, chunk := range chunks {
			state.topics.Add(chunkID(meta.Filename, meta.Version, chunk.Position), chunk.Title, chunk.Text)
		}
	}
}
