package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.document")

// Ingest stores a document for a tenant, replacing any existing document
// with the same filename under a new version. The new version is written
// alongside the old one; the active version flips only after every new row
// is stored, and the old rows are evicted afterwards.
func (m *Manager) Ingest(ctx context.Context, tenant, filename string, data []byte, contentType string) (_ Meta, err error) {
	ctx, span := tracer.Start(ctx, "Manager.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant", tenant),
		attribute.String("filename", filename),
		attribute.Int("bytes", len(data)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
	}()

	if err = vectorstore.ValidateTenantID(tenant); err != nil {
		return Meta{}, err
	}
	if err = ValidateFilename(filename); err != nil {
		return Meta{}, err
	}
	if int64(len(data)) > m.config.MaxDocumentBytes {
		return Meta{}, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			ErrDocumentTooLarge, len(data), m.config.MaxDocumentBytes)
	}

	// Index updates run to completion even when the caller disconnects
	// mid-request. A canceled upload must not leave a half-flipped version.
	ctx = context.WithoutCancel(ctx)

	text, redactions, chunks, err := m.pipeline(ctx, data, contentType)
	if err != nil {
		return Meta{}, fmt.Errorf("ingesting %s/%s: %w", tenant, filename, err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embedCtx, cancel := context.WithTimeout(ctx, m.config.EmbedTimeout)
	vectors, err := m.embedder.EmbedDocuments(embedCtx, texts)
	cancel()
	if err != nil {
		return Meta{}, fmt.Errorf("embedding %s/%s: %w", tenant, filename, err)
	}
	if len(vectors) != len(chunks) {
		return Meta{}, fmt.Errorf("%w: %d chunks, %d vectors",
			ErrIndexInconsistency, len(chunks), len(vectors))
	}

	state := m.getOrCreate(tenant)
	state.updateMu.Lock()
	defer state.updateMu.Unlock()

	prior, hadPrior := state.document(filename)
	version := 1
	if hadPrior {
		version = prior.Version + 1
	}

	rows := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		rows[i] = vectorstore.Document{
			ID:      chunkID(filename, version, chunk.Position),
			Content: chunk.Text,
			Vector:  vectors[i],
			Metadata: map[string]string{
				MetaFilename: filename,
				MetaTitle:    chunk.Title,
				MetaSection:  chunk.SectionID,
				MetaVersion:  strconv.Itoa(version),
				MetaPosition: strconv.Itoa(chunk.Position),
			},
		}
	}

	if err = m.store.Upsert(ctx, tenant, rows); err != nil {
		// Roll the partial version back. The active version was never
		// flipped, so readers keep seeing the prior document.
		if delErr := m.store.DeleteByID(ctx, tenant, versionIDs(filename, version, len(rows))); delErr != nil {
			m.logger.Warn("Failed to roll back partial version",
				zap.String("tenant", tenant),
				zap.String("filename", filename),
				zap.Int("version", version),
				zap.Error(delErr))
		}
		return Meta{}, fmt.Errorf("storing %s/%s: %w", tenant, filename, err)
	}

	meta := Meta{
		Tenant:      tenant,
		Filename:    filename,
		ContentType: contentType,
		ChunkCount:  len(chunks),
		Version:     version,
		UploadedAt:  time.Now().UTC(),
		Redactions:  redactions,
		ContentHash: contentHash(data),
	}
	state.setDocument(meta)

	if hadPrior {
		// Superseded rows are invisible to Search from here on; eviction
		// is cleanup, not correctness.
		if delErr := m.store.DeleteByID(ctx, tenant, versionIDs(filename, prior.Version, prior.ChunkCount)); delErr != nil {
			m.logger.Warn("Failed to evict superseded version",
				zap.String("tenant", tenant),
				zap.String("filename", filename),
				zap.Int("version", prior.Version),
				zap.Error(delErr))
		}
		for _, id := range versionIDs(filename, prior.Version, prior.ChunkCount) {
			state.topics.Remove(id)
		}
	}
	for i, chunk := range chunks {
		state.topics.Add(rows[i].ID, chunk.Title, chunk.Text)
	}

	if saveErr := m.saveSource(tenant, filename, []byte(text)); saveErr != nil {
		m.logger.Warn("Failed to save source copy",
			zap.String("tenant", tenant),
			zap.String("filename", filename),
			zap.Error(saveErr))
	}
	if saveErr := m.saveMeta(tenant, state); saveErr != nil {
		m.logger.Warn("Failed to save tenant metadata",
			zap.String("tenant", tenant),
			zap.Error(saveErr))
	}

	if m.events != nil {
		if hadPrior {
			m.events.DocumentUpdated(ctx, tenant, filename, len(chunks))
		} else {
			m.events.DocumentIngested(ctx, tenant, filename, len(chunks))
		}
	}

	m.logger.Info("Document ingested",
		zap.String("tenant", tenant),
		zap.String("filename", filename),
		zap.Int("version", version),
		zap.Int("chunks", len(chunks)),
		zap.Int("redactions", redactions),
		zap.Int("text_len", len(text)))
	return meta, nil
}

// pipeline extracts, redacts, and chunks one document payload.
func (m *Manager) pipeline(ctx context.Context, data []byte, contentType string) (string, int, []chunker.Chunk, error) {
	text, err := m.extractor.Extract(ctx, data, contentType)
	if err != nil {
		return "", 0, nil, err
	}

	redactions := 0
	if m.redactor != nil {
		result := m.redactor.Redact(text)
		text = result.Content
		redactions = result.Audit.Summary.TotalSecrets
	}

	chunks := m.chunker.Split(text)
	if len(chunks) == 0 {
		return "", 0, nil, fmt.Errorf("%w: no retrievable sections", extract.ErrExtraction)
	}
	return text, redactions, chunks, nil
}

// Delete removes a document and its chunk rows. Deleting the tenant's last
// document drops the collection; the tenant itself stays known.
func (m *Manager) Delete(ctx context.Context, tenant, filename string) (err error) {
	ctx, span := tracer.Start(ctx, "Manager.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant", tenant),
		attribute.String("filename", filename),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
	}()

	state, err := m.resolve(tenant)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)

	state.updateMu.Lock()
	defer state.updateMu.Unlock()

	meta, ok := state.document(filename)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, tenant, filename)
	}

	ids := versionIDs(filename, meta.Version, meta.ChunkCount)
	if err = m.store.DeleteByID(ctx, tenant, ids); err != nil {
		// Keep the metadata so the delete can be retried.
		return fmt.Errorf("deleting %s/%s: %w", tenant, filename, err)
	}

	for _, id := range ids {
		state.topics.Remove(id)
	}
	state.removeDocument(filename)

	if rmErr := os.Remove(m.sourcePath(tenant, filename)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		m.logger.Warn("Failed to remove source copy",
			zap.String("tenant", tenant),
			zap.String("filename", filename),
			zap.Error(rmErr))
	}
	if saveErr := m.saveMeta(tenant, state); saveErr != nil {
		m.logger.Warn("Failed to save tenant metadata",
			zap.String("tenant", tenant),
			zap.Error(saveErr))
	}

	if state.documentCount() == 0 {
		if dropErr := m.store.DropTenant(ctx, tenant); dropErr != nil {
			m.logger.Warn("Failed to drop empty collection",
				zap.String("tenant", tenant),
				zap.Error(dropErr))
		}
	}

	if m.events != nil {
		m.events.DocumentDeleted(ctx, tenant, filename)
	}

	m.logger.Info("Document deleted",
		zap.String("tenant", tenant),
		zap.String("filename", filename),
		zap.Int("version", meta.Version))
	return nil
}

// LoadSeed ingests documents from a seed directory laid out as
// <dir>/<tenant>/<filename>. Files whose content hash matches the stored
// document are skipped, so repeated startups do not re-embed anything.
// A missing directory is not an error.
func (m *Manager) LoadSeed(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading seed directory: %w", err)
	}

	var ingested, skipped, failed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tenant := entry.Name()
		if err := vectorstore.ValidateTenantID(tenant); err != nil {
			m.logger.Warn("Skipping seed directory with invalid tenant id",
				zap.String("dir", tenant),
				zap.Error(err))
			continue
		}

		files, err := os.ReadDir(filepath.Join(dir, tenant))
		if err != nil {
			m.logger.Warn("Failed to read tenant seed directory",
				zap.String("tenant", tenant),
				zap.Error(err))
			continue
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			data, err := os.ReadFile(filepath.Join(dir, tenant, name))
			if err != nil {
				m.logger.Warn("Failed to read seed file",
					zap.String("tenant", tenant),
					zap.String("filename", name),
					zap.Error(err))
				failed++
				continue
			}

			if existing, lookErr := m.Get(tenant, name); lookErr == nil && existing.ContentHash == contentHash(data) {
				skipped++
				continue
			}

			if _, err := m.Ingest(ctx, tenant, name, data, contentTypeFor(name)); err != nil {
				m.logger.Warn("Failed to ingest seed file",
					zap.String("tenant", tenant),
					zap.String("filename", name),
					zap.Error(err))
				failed++
				continue
			}
			ingested++
		}
	}

	m.logger.Info("Seed documents loaded",
		zap.String("dir", dir),
		zap.Int("ingested", ingested),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))
	return nil
}

// contentTypeFor maps a filename extension to its MIME type.
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
