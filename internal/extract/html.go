package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// htmlBaseURL resolves relative links; uploaded pages have no origin.
var htmlBaseURL = &url.URL{Scheme: "http", Host: "localhost", Path: "/"}

// HTML extracts the readable article text of an HTML page.
type HTML struct{}

// NewHTML creates an HTML extractor.
func NewHTML() *HTML {
	return &HTML{}
}

// MIMETypes implements Extractor.
func (h *HTML) MIMETypes() []string {
	return []string{MIMEHTML}
}

// Extract implements Extractor. Each non-blank line of the article text
// becomes one paragraph.
func (h *HTML) Extract(_ context.Context, payload []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(payload), htmlBaseURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	var blocks []string
	for _, line := range strings.Split(article.TextContent, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			blocks = append(blocks, line)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}
