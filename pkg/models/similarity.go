package models

import (
	"encoding/json"
	"math"
)

// SimilarityPair is a retained pair of paragraphs with First.Index < Second.Index.
type SimilarityPair struct {
	First  Paragraph
	Second Paragraph

	// Score is the unrounded similarity in [0,1]; threshold checks use it.
	Score float64
	// Percent is Score scaled to an integer percentage for display.
	Percent int
}

// NewSimilarityPair builds a pair, deriving the display percentage from score.
func NewSimilarityPair(first, second Paragraph, score float64) SimilarityPair {
	return SimilarityPair{
		First:   first,
		Second:  second,
		Score:   score,
		Percent: ScorePercent(score),
	}
}

// ScorePercent converts a [0,1] score to a percentage, rounding half away from zero.
func ScorePercent(score float64) int {
	return int(math.Round(score * 100))
}

// SimilarityGroup is a representative paragraph and the paragraphs similar to it.
// Members never repeat an index and never include Main.
type SimilarityGroup struct {
	Similarity int
	Main       Paragraph
	Members    []Paragraph
}

// SimilarityGroupJSON is the wire representation of a SimilarityGroup.
type SimilarityGroupJSON struct {
	Similarity        int         `json:"similarity"`
	MainParagraph     int         `json:"mainParagraph"`
	MainText          string      `json:"mainText"`
	SimilarParagraphs []Paragraph `json:"similarParagraphs"`
}

// MarshalJSON implements json.Marshaler for SimilarityGroup.
func (g SimilarityGroup) MarshalJSON() ([]byte, error) {
	members := g.Members
	if members == nil {
		members = []Paragraph{}
	}
	return json.Marshal(SimilarityGroupJSON{
		Similarity:        g.Similarity,
		MainParagraph:     g.Main.Index,
		MainText:          g.Main.Text,
		SimilarParagraphs: members,
	})
}

// UnmarshalJSON implements json.Unmarshaler for SimilarityGroup.
func (g *SimilarityGroup) UnmarshalJSON(data []byte) error {
	var j SimilarityGroupJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	g.Similarity = j.Similarity
	g.Main = Paragraph{Index: j.MainParagraph, Text: j.MainText}
	g.Members = j.SimilarParagraphs
	return nil
}

// AnalysisResult is the outcome of analyzing one document.
type AnalysisResult struct {
	Results []SimilarityGroup `json:"results"`
}

// MarshalJSON implements json.Marshaler, emitting an empty list rather than null.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	type alias AnalysisResult
	out := alias(r)
	if out.Results == nil {
		out.Results = []SimilarityGroup{}
	}
	return json.Marshal(out)
}
