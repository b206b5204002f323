// Package models contains domain models for parasim.
package models

import "strings"

// ParagraphSeparator is the blank-line boundary between paragraphs.
const ParagraphSeparator = "\n\n"

// Paragraph is a unit of text addressed by its 1-based position in a Document.
// Two paragraphs with identical text at different positions are distinct.
type Paragraph struct {
	Index int    `json:"paragraph"`
	Text  string `json:"text"`
}

// Document is an ordered, immutable sequence of paragraphs.
type Document struct {
	Paragraphs []Paragraph
}

// Len returns the number of paragraphs.
func (d Document) Len() int {
	return len(d.Paragraphs)
}

// Texts returns the paragraph texts in reading order.
func (d Document) Texts() []string {
	texts := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		texts[i] = p.Text
	}
	return texts
}

// Join rebuilds document text from paragraphs using the blank-line separator.
func Join(paragraphs []Paragraph) string {
	var sb strings.Builder
	for i, p := range paragraphs {
		if i > 0 {
			sb.WriteString(ParagraphSeparator)
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
