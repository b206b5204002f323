// Package engine implements the paragraph similarity engine: segmentation,
// pairwise scoring, grouping, and paragraph removal.
package engine

import (
	"strings"

	"github.com/thebtf/parasim/pkg/models"
)

// Segment splits text on blank-line boundaries into 1-based paragraphs.
// Units that are empty or whitespace-only are dropped; kept units are stored
// verbatim so joining them with the separator reproduces them.
func Segment(text string) models.Document {
	units := strings.Split(text, models.ParagraphSeparator)
	paragraphs := make([]models.Paragraph, 0, len(units))
	for _, unit := range units {
		if strings.TrimSpace(unit) == "" {
			continue
		}
		paragraphs = append(paragraphs, models.Paragraph{
			Index: len(paragraphs) + 1,
			Text:  unit,
		})
	}
	return models.Document{Paragraphs: paragraphs}
}
