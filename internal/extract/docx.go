package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// docxBodyPart is the archive member holding the main document body.
const docxBodyPart = "word/document.xml"

// maxDocxBodyBytes caps the decompressed body size.
const maxDocxBodyBytes = 64 << 20

// Docx extracts raw text from Word (OOXML) documents. Each paragraph is
// followed by a blank line; tabs and breaks inside a paragraph are kept.
type Docx struct{}

// NewDocx creates a Word document extractor.
func NewDocx() *Docx {
	return &Docx{}
}

// MIMETypes implements Extractor.
func (d *Docx) MIMETypes() []string {
	return []string{MIMEDocx}
}

// Extract implements Extractor.
func (d *Docx) Extract(ctx context.Context, payload []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != docxBodyPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBodyPart, err)
		}
		defer rc.Close()
		return parseDocxBody(ctx, io.LimitReader(rc, maxDocxBodyBytes))
	}
	return "", fmt.Errorf("%s not found in archive", docxBodyPart)
}

// parseDocxBody streams document.xml and collects paragraph text.
func parseDocxBody(ctx context.Context, r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out     strings.Builder
		para    strings.Builder
		depth   int
		inText  bool
		counter int
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBodyPart, err)
		}

		// Check for cancellation every few thousand tokens.
		counter++
		if counter%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					para.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				if depth > 0 {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					out.WriteString(para.String())
					out.WriteString("\n\n")
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				para.Write(t)
			}
		}
	}

	return out.String(), nil
}
