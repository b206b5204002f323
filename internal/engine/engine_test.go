package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/parasim/pkg/models"
	"github.com/thebtf/parasim/pkg/similarity"
)

// catMatText is the three-paragraph reference document.
const catMatText = "the cat sat on the mat\n\nthe cat sat on a mat\n\ncompletely different text"

// EngineSuite exercises the analysis and removal paths end to end.
type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	analyzer *Analyzer
	cosine   similarity.Backend
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.analyzer = NewAnalyzer(nil)
	s.cosine = similarity.NewCosine()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// =============================================================================
// PAIR FINDER
// =============================================================================

func (s *EngineSuite) TestFindPairs_CatMatScenario() {
	doc := Segment(catMatText)
	s.Require().Equal(3, doc.Len())

	pairs, err := NewFinder(s.cosine).FindPairs(s.ctx, doc)
	s.Require().NoError(err)
	s.Require().Len(pairs, 1)

	pair := pairs[0]
	s.Equal(1, pair.First.Index)
	s.Equal(2, pair.Second.Index)
	s.Equal("the cat sat on the mat", pair.First.Text)
	s.Equal("the cat sat on a mat", pair.Second.Text)
	s.InDelta(0.9129, pair.Score, 0.0001)
	s.Equal(91, pair.Percent)
}

func (s *EngineSuite) TestFindPairs_EachPairOnceInRowMajorOrder() {
	doc := Segment("same words\n\nsame words\n\nsame words\n\nsame words")

	finder := NewFinder(s.cosine)
	finder.Threshold = 0
	pairs, err := finder.FindPairs(s.ctx, doc)
	s.Require().NoError(err)
	s.Require().Len(pairs, 6)

	expected := [][2]int{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	for i, p := range pairs {
		s.Equal(expected[i][0], p.First.Index)
		s.Equal(expected[i][1], p.Second.Index)
		s.Less(p.First.Index, p.Second.Index)
	}
}

func (s *EngineSuite) TestFindPairs_ThresholdUsesUnroundedScore() {
	// 5/sqrt(30) = 0.91287..., which displays as 91.
	doc := Segment("the cat sat on the mat\n\nthe cat sat on a mat")
	finder := NewFinder(s.cosine)

	finder.Threshold = 0.9128
	pairs, err := finder.FindPairs(s.ctx, doc)
	s.Require().NoError(err)
	s.Len(pairs, 1)

	finder.Threshold = 0.9129
	pairs, err = finder.FindPairs(s.ctx, doc)
	s.Require().NoError(err)
	s.Empty(pairs, "0.91287 is below 0.9129 even though it rounds to 91%%")

	finder.Threshold = 0.91
	pairs, err = finder.FindPairs(s.ctx, doc)
	s.Require().NoError(err)
	s.Len(pairs, 1)
}

func (s *EngineSuite) TestFindPairs_ThresholdMonotonic() {
	doc := Segment(mixedDocument())

	previous := -1
	for _, threshold := range []float64{0, 0.1, 0.25, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1} {
		finder := NewFinder(s.cosine)
		finder.Threshold = threshold
		pairs, err := finder.FindPairs(s.ctx, doc)
		s.Require().NoError(err)
		if previous >= 0 {
			s.LessOrEqual(len(pairs), previous, "threshold %v", threshold)
		}
		previous = len(pairs)
	}
}

func (s *EngineSuite) TestFindPairs_ParallelMatchesSequential() {
	doc := Segment(mixedDocument())

	for _, backend := range []similarity.Backend{similarity.NewCosine(), similarity.NewHashed(0)} {
		sequential := &Finder{Backend: backend, Threshold: 0.3}
		want, err := sequential.FindPairs(s.ctx, doc)
		s.Require().NoError(err)
		s.Require().NotEmpty(want)

		for _, workers := range []int{2, 3, 8, 64} {
			parallel := &Finder{Backend: backend, Threshold: 0.3, Workers: workers}
			got, err := parallel.FindPairs(s.ctx, doc)
			s.Require().NoError(err)
			s.Equal(want, got, "%s with %d workers", backend.Name(), workers)
		}
	}
}

func (s *EngineSuite) TestFindPairs_Cancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	doc := Segment(mixedDocument())
	for _, workers := range []int{0, 4} {
		finder := &Finder{Backend: s.cosine, Threshold: 0.5, Workers: workers}
		pairs, err := finder.FindPairs(ctx, doc)
		s.ErrorIs(err, context.Canceled)
		s.Nil(pairs)
	}
}

func (s *EngineSuite) TestFindPairs_Degenerate() {
	finder := NewFinder(s.cosine)

	pairs, err := finder.FindPairs(s.ctx, models.Document{})
	s.NoError(err)
	s.Empty(pairs)

	pairs, err = finder.FindPairs(s.ctx, Segment("only one paragraph"))
	s.NoError(err)
	s.Empty(pairs)

	_, err = (&Finder{}).FindPairs(s.ctx, Segment("a\n\nb"))
	s.ErrorIs(err, ErrNoBackend)
}

// =============================================================================
// GROUPER
// =============================================================================

func (s *EngineSuite) TestGroup_CatMatScenario() {
	result, err := s.analyzer.Analyze(s.ctx, catMatText, DefaultSettings())
	s.Require().NoError(err)
	s.Require().Len(result.Results, 1)

	group := result.Results[0]
	s.Equal(91, group.Similarity)
	s.Equal(1, group.Main.Index)
	s.Equal("the cat sat on the mat", group.Main.Text)
	s.Equal([]models.Paragraph{{Index: 2, Text: "the cat sat on a mat"}}, group.Members)
}

func (s *EngineSuite) TestGroup_BucketsByPercentAndRepresentativeText() {
	p := func(i int, text string) models.Paragraph { return models.Paragraph{Index: i, Text: text} }
	pairs := []models.SimilarityPair{
		models.NewSimilarityPair(p(1, "a"), p(2, "b"), 0.80),
		models.NewSimilarityPair(p(1, "a"), p(3, "c"), 0.80),
		models.NewSimilarityPair(p(1, "a"), p(4, "d"), 0.95),
		models.NewSimilarityPair(p(2, "b"), p(3, "c"), 0.80),
	}

	groups := Group(pairs)
	s.Require().Len(groups, 3)

	s.Equal(95, groups[0].Similarity)
	s.Equal(1, groups[0].Main.Index)
	s.Equal([]models.Paragraph{p(4, "d")}, groups[0].Members)

	// Equal similarity: creation order is kept.
	s.Equal(80, groups[1].Similarity)
	s.Equal(1, groups[1].Main.Index)
	s.Equal([]models.Paragraph{p(2, "b"), p(3, "c")}, groups[1].Members)

	s.Equal(80, groups[2].Similarity)
	s.Equal(2, groups[2].Main.Index)
	s.Equal([]models.Paragraph{p(3, "c")}, groups[2].Members)
}

func (s *EngineSuite) TestGroup_OverlappingGroupsPreserved() {
	// Paragraph 3 is similar to both 1 and 2 at different scores and shows up
	// in both groups; nothing is merged transitively.
	p := func(i int, text string) models.Paragraph { return models.Paragraph{Index: i, Text: text} }
	pairs := []models.SimilarityPair{
		models.NewSimilarityPair(p(1, "x"), p(3, "z"), 0.75),
		models.NewSimilarityPair(p(2, "y"), p(3, "z"), 0.85),
	}

	groups := Group(pairs)
	s.Require().Len(groups, 2)
	s.Equal(2, groups[0].Main.Index)
	s.Equal(1, groups[1].Main.Index)
	s.Equal(3, groups[0].Members[0].Index)
	s.Equal(3, groups[1].Members[0].Index)
}

func (s *EngineSuite) TestGroup_IdenticalTextsShareBucket() {
	// Two representatives with the same text and percentage fall into the
	// first one's bucket; the second shows up as a member.
	p := func(i int, text string) models.Paragraph { return models.Paragraph{Index: i, Text: text} }
	pairs := []models.SimilarityPair{
		models.NewSimilarityPair(p(1, "dup"), p(3, "other"), 0.9),
		models.NewSimilarityPair(p(2, "dup"), p(4, "more"), 0.9),
	}

	groups := Group(pairs)
	s.Require().Len(groups, 1)
	s.Equal(1, groups[0].Main.Index)
	s.Equal([]models.Paragraph{p(3, "other"), p(2, "dup"), p(4, "more")}, groups[0].Members)
}

func (s *EngineSuite) TestGroup_MembersNeverIncludeMainAndNoDuplicates() {
	settings := DefaultSettings()
	settings.Threshold = 0.2
	result, err := s.analyzer.Analyze(s.ctx, mixedDocument(), settings)
	s.Require().NoError(err)
	s.Require().NotEmpty(result.Results)

	for i, g := range result.Results {
		seen := map[int]bool{}
		for _, m := range g.Members {
			s.NotEqual(g.Main.Index, m.Index)
			s.False(seen[m.Index], "duplicate member %d", m.Index)
			seen[m.Index] = true
		}
		if i > 0 {
			s.GreaterOrEqual(result.Results[i-1].Similarity, g.Similarity)
		}
	}
}

func (s *EngineSuite) TestGroup_Empty() {
	s.Empty(Group(nil))
}

// =============================================================================
// REMOVER
// =============================================================================

func (s *EngineSuite) TestRemove_MiddleParagraph() {
	out := s.analyzer.Remove(catMatText, []int{2})
	s.Equal("the cat sat on the mat\n\ncompletely different text", out)

	doc := Segment(out)
	s.Equal([]string{"the cat sat on the mat", "completely different text"}, doc.Texts())
}

func (s *EngineSuite) TestRemove_Properties() {
	doc := Segment(catMatText)

	s.Equal(models.Join(doc.Paragraphs), Remove(doc, NewIndexSet()))
	s.Equal(models.Join(doc.Paragraphs), Remove(doc, nil))
	s.Equal("", Remove(doc, IndexSetOf(1, 2, 3)))
	s.Equal(catMatText, Remove(doc, IndexSetOf(0, 4, -1, 99)), "unknown indices are ignored")
}

// =============================================================================
// ANALYZER
// =============================================================================

func (s *EngineSuite) TestAnalyze_HashedBackend() {
	settings := Settings{Threshold: 0.3, Backend: similarity.BackendHashed}
	result, err := s.analyzer.Analyze(s.ctx, "a b\n\na c\n\nzzz yyy xxx www", settings)
	s.Require().NoError(err)
	s.Require().Len(result.Results, 1)
	s.Equal(33, result.Results[0].Similarity)
	s.Equal(1, result.Results[0].Main.Index)
}

func (s *EngineSuite) TestAnalyze_UnknownBackend() {
	_, err := s.analyzer.Analyze(s.ctx, catMatText, Settings{Threshold: 0.7, Backend: "gpu"})
	s.ErrorIs(err, similarity.ErrUnknownBackend)
}

func (s *EngineSuite) TestAnalyze_BlankDocument() {
	result, err := s.analyzer.Analyze(s.ctx, "\n\n   \n\n", DefaultSettings())
	s.Require().NoError(err)
	s.Empty(result.Results)
}

func (s *EngineSuite) TestSettingsValidate() {
	s.NoError(DefaultSettings().Validate())
	s.Error(Settings{Threshold: 1.5}.Validate())
	s.Error(Settings{Threshold: -0.1}.Validate())
	s.Error(Settings{Threshold: 0.5, Workers: -1}.Validate())
	s.Error(Settings{Threshold: 0.5, Backend: "nope"}.Validate())
}

// mixedDocument builds a document with several families of related paragraphs.
func mixedDocument() string {
	families := []string{
		"the quick brown fox jumps over the lazy dog",
		"error handling with wrapped errors and sentinel values",
		"paragraph similarity is measured with word vectors",
	}
	var paragraphs []string
	for round := 0; round < 4; round++ {
		for f, base := range families {
			paragraphs = append(paragraphs, fmt.Sprintf("%s variant%d family%d", base, round, f))
		}
	}
	paragraphs = append(paragraphs, "nothing in common here at all")
	return strings.Join(paragraphs, "\n\n")
}
