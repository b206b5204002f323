package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/thebtf/parasim/pkg/models"
	"github.com/thebtf/parasim/pkg/similarity"
)

// DefaultThreshold is the minimum similarity for a pair to be retained.
const DefaultThreshold = 0.7

// ErrNoBackend is returned when a Finder has no scoring backend.
var ErrNoBackend = errors.New("no similarity backend")

// Finder enumerates paragraph pairs and keeps those scoring at or above
// Threshold. One Finder uses a single backend for every pair it scores.
type Finder struct {
	Backend   similarity.Backend
	Threshold float64
	// Workers is the number of goroutines scoring rows. Values <= 1 score
	// sequentially. Output order does not depend on it.
	Workers int
}

// NewFinder creates a sequential Finder with the default threshold.
func NewFinder(backend similarity.Backend) *Finder {
	return &Finder{Backend: backend, Threshold: DefaultThreshold}
}

// FindPairs scores every unordered pair (i, j), i < j, exactly once.
// Pairs are returned in row-major order. A cancelled ctx aborts the run and
// discards partial results.
func (f *Finder) FindPairs(ctx context.Context, doc models.Document) ([]models.SimilarityPair, error) {
	if f.Backend == nil {
		return nil, ErrNoBackend
	}

	paragraphs := doc.Paragraphs
	if len(paragraphs) < 2 {
		return nil, nil
	}

	vectors := make([]similarity.Vector, len(paragraphs))
	for i, p := range paragraphs {
		vectors[i] = f.Backend.Vectorize(p.Text)
	}

	rows := make([][]models.SimilarityPair, len(paragraphs)-1)
	scoreRow := func(i int) {
		var row []models.SimilarityPair
		for j := i + 1; j < len(paragraphs); j++ {
			score := similarity.Compare(vectors[i], vectors[j])
			if score >= f.Threshold {
				row = append(row, models.NewSimilarityPair(paragraphs[i], paragraphs[j], score))
			}
		}
		rows[i] = row
	}

	if f.Workers <= 1 {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scoreRow(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.Workers)
		for i := range rows {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scoreRow(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		// errgroup only reports errors from its own goroutines; a cancel that
		// lands after the last row still discards the run.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var pairs []models.SimilarityPair
	for _, row := range rows {
		pairs = append(pairs, row...)
	}
	return pairs, nil
}
