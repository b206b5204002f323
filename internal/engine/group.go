package engine

import (
	"sort"

	"github.com/thebtf/parasim/pkg/models"
)

// groupKey buckets pairs by display percentage and representative text.
type groupKey struct {
	percent int
	text    string
}

type bucket struct {
	percent int
	main    models.Paragraph
	members *IndexSet
}

// Group aggregates pairs into groups anchored on each pair's first paragraph.
//
// Pairs sharing (percentage, first paragraph text) land in the same group,
// whose representative is the first paragraph of the first such pair. Both
// paragraphs of every pair join the member set; the representative is then
// left out of its own members. Groups are sorted by similarity descending,
// ties kept in creation order.
//
// Groups are not transitive and may overlap: a paragraph similar to several
// representatives appears in each of their groups.
func Group(pairs []models.SimilarityPair) []models.SimilarityGroup {
	index := make(map[groupKey]int)
	var buckets []*bucket

	for _, pair := range pairs {
		key := groupKey{percent: pair.Percent, text: pair.First.Text}
		pos, ok := index[key]
		if !ok {
			pos = len(buckets)
			index[key] = pos
			buckets = append(buckets, &bucket{
				percent: pair.Percent,
				main:    pair.First,
				members: NewIndexSet(),
			})
		}
		b := buckets[pos]
		b.members.Add(pair.First)
		b.members.Add(pair.Second)
	}

	groups := make([]models.SimilarityGroup, 0, len(buckets))
	for _, b := range buckets {
		groups = append(groups, models.SimilarityGroup{
			Similarity: b.percent,
			Main:       b.main,
			Members:    b.members.Paragraphs(b.main.Index),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Similarity > groups[j].Similarity
	})
	return groups
}
