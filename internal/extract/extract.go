// Package extract converts uploaded documents into plain UTF-8 text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types with built-in extractors.
const (
	MIMEPlainText = "text/plain"
	MIMEDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPDF       = "application/pdf"
	MIMEHTML      = "text/html"
)

// Extraction errors.
var (
	// ErrMissingInput indicates no payload or no declared type was supplied.
	ErrMissingInput = errors.New("missing input")

	// ErrUnsupportedFormat indicates no extractor handles the declared type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailure indicates an extractor failed on the payload.
	ErrExtractionFailure = errors.New("extraction failed")
)

// Extractor converts one document format to text.
type Extractor interface {
	// MIMETypes returns the media types this extractor handles.
	MIMETypes() []string
	// Extract returns the document text. Paragraphs are separated by a blank line.
	Extract(ctx context.Context, payload []byte) (string, error)
}

// Registry selects extractors by declared MIME type.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry creates a registry holding the given extractors. Later
// extractors win when two claim the same type.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in extractor.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPlainText(), NewDocx(), NewPDF(), NewHTML())
}

// Register adds an extractor for each of its MIME types.
func (r *Registry) Register(e Extractor) {
	for _, t := range e.MIMETypes() {
		r.byType[MediaType(t)] = e
	}
}

// Supported returns the registered MIME types, sorted.
func (r *Registry) Supported() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract converts payload to text using the extractor for mimeType.
func (r *Registry) Extract(ctx context.Context, mimeType string, payload []byte) (string, error) {
	mediaType := MediaType(mimeType)
	if len(payload) == 0 || mediaType == "" {
		return "", ErrMissingInput
	}

	e, ok := r.byType[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}

	text, err := e.Extract(ctx, payload)
	if err != nil {
		if errors.Is(err, ErrExtractionFailure) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailure, mediaType, err)
	}
	return text, nil
}

// MediaType lower-cases a MIME type and strips parameters such as charset.
func MediaType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Detect sniffs the MIME type of payload from its content.
func Detect(payload []byte) string {
	return MediaType(mimetype.Detect(payload).String())
}
