package engine

import "github.com/thebtf/parasim/pkg/models"

// IndexSet is an insertion-ordered set of paragraphs keyed by index.
// The first paragraph added for an index wins.
type IndexSet struct {
	order []models.Paragraph
	seen  map[int]struct{}
}

// NewIndexSet creates an empty set.
func NewIndexSet() *IndexSet {
	return &IndexSet{seen: make(map[int]struct{})}
}

// IndexSetOf builds a set from bare indices (texts left empty).
func IndexSetOf(indices ...int) *IndexSet {
	s := NewIndexSet()
	for _, idx := range indices {
		s.Add(models.Paragraph{Index: idx})
	}
	return s
}

// Add inserts p unless its index is already present. Reports whether it was added.
func (s *IndexSet) Add(p models.Paragraph) bool {
	if _, ok := s.seen[p.Index]; ok {
		return false
	}
	s.seen[p.Index] = struct{}{}
	s.order = append(s.order, p)
	return true
}

// Contains reports whether index is in the set. A nil set contains nothing.
func (s *IndexSet) Contains(index int) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[index]
	return ok
}

// Len returns the number of members.
func (s *IndexSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Paragraphs returns members in insertion order, skipping the given index.
func (s *IndexSet) Paragraphs(exclude int) []models.Paragraph {
	out := make([]models.Paragraph, 0, len(s.order))
	for _, p := range s.order {
		if p.Index == exclude {
			continue
		}
		out = append(out, p)
	}
	return out
}
