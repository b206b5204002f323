package extract

import (
	"context"
	"strings"
	"unicode/utf8"
)

// PlainText passes UTF-8 text through with line endings normalized to LF.
type PlainText struct{}

// NewPlainText creates a plain text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// MIMETypes implements Extractor.
func (p *PlainText) MIMETypes() []string {
	return []string{MIMEPlainText}
}

// Extract implements Extractor. Invalid UTF-8 sequences are replaced with U+FFFD.
func (p *PlainText) Extract(_ context.Context, payload []byte) (string, error) {
	text := string(payload)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return text, nil
}
