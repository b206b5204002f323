package engine

import "github.com/thebtf/parasim/pkg/models"

// Remove rebuilds document text without the paragraphs whose index is in
// drop. Indices that do not exist are ignored. Removing every paragraph
// yields an empty string.
func Remove(doc models.Document, drop *IndexSet) string {
	kept := make([]models.Paragraph, 0, len(doc.Paragraphs))
	for _, p := range doc.Paragraphs {
		if drop.Contains(p.Index) {
			continue
		}
		kept = append(kept, p)
	}
	return models.Join(kept)
}
