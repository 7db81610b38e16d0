// Package extract converts uploaded document bytes into plain text.
//
// Plain text and markdown are handled natively. PDF and image (OCR) payloads
// are delegated to an external extraction service; its mechanics stay behind
// the Extractor contract.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrExtraction indicates unreadable or undecodable document input.
	// The document is not partially ingested.
	ErrExtraction = errors.New("extraction failed")

	// ErrUnsupportedType indicates a content type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported content type")
)

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	// Extract returns the plain text for data. contentType is a MIME type
	// such as "text/plain" or "application/pdf".
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// utf8BOM is stripped from text payloads before decoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText extracts text/* and markdown payloads natively.
type PlainText struct{}

// NewPlainText returns the native text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Extract validates and normalizes a text payload.
func (p *PlainText) Extract(_ context.Context, data []byte, contentType string) (string, error) {
	if !isTextType(contentType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", ErrExtraction)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document is empty", ErrExtraction)
	}
	return text, nil
}

// isTextType reports whether the native extractor handles contentType.
func isTextType(contentType string) bool {
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	return mime == "application/markdown" || mime == ""
}

// Dispatcher routes payloads to the native extractor or the external
// extraction service by content type.
type Dispatcher struct {
	text    *PlainText
	service *Service
}

// NewDispatcher builds the default extractor chain. service may be nil when
// no external extraction sidecar is configured; PDF/OCR payloads then fail
// with ErrUnsupportedType.
func NewDispatcher(service *Service) *Dispatcher {
	return &Dispatcher{
		text:    NewPlainText(),
		service: service,
	}
}

// Extract implements Extractor.
func (d *Dispatcher) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if isTextType(contentType) {
		return d.text.Extract(ctx, data, contentType)
	}
	if d.service == nil {
		return "", fmt.Errorf("%w: %q (no extraction service configured)", ErrUnsupportedType, contentType)
	}
	return d.service.Extract(ctx, data, contentType)
}
