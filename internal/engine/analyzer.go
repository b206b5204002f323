package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/parasim/pkg/models"
	"github.com/thebtf/parasim/pkg/similarity"
)

// meterName identifies engine instruments.
const meterName = "github.com/thebtf/parasim/internal/engine"

// Settings selects the backend and thresholds for one analysis.
type Settings struct {
	Threshold float64
	Backend   string
	Buckets   int
	Workers   int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Threshold: DefaultThreshold,
		Backend:   similarity.DefaultBackend,
		Buckets:   similarity.DefaultBuckets,
	}
}

// Validate checks that settings describe a runnable analysis.
func (s Settings) Validate() error {
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold %v out of range [0,1]", s.Threshold)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", s.Workers)
	}
	if _, err := similarity.NewBackend(s.Backend, similarity.Options{Buckets: s.Buckets}); err != nil {
		return err
	}
	return nil
}

// Analyzer runs the analysis and removal paths. It holds no per-document
// state; each call builds its own backend from the settings it is given.
type Analyzer struct {
	analyses   metric.Int64Counter
	pairsKept  metric.Int64Counter
	paragraphs metric.Int64Histogram
	duration   metric.Float64Histogram
}

// NewAnalyzer creates an Analyzer whose instruments report to mp.
// A nil mp disables engine metrics.
func NewAnalyzer(mp metric.MeterProvider) *Analyzer {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)
	a := &Analyzer{}

	var err error
	if a.analyses, err = meter.Int64Counter("parasim.analyses",
		metric.WithDescription("Documents analyzed")); err != nil {
		log.Warn().Err(err).Msg("Failed to create analyses counter")
	}
	if a.pairsKept, err = meter.Int64Counter("parasim.pairs.retained",
		metric.WithDescription("Paragraph pairs at or above threshold")); err != nil {
		log.Warn().Err(err).Msg("Failed to create pairs counter")
	}
	if a.paragraphs, err = meter.Int64Histogram("parasim.document.paragraphs",
		metric.WithDescription("Paragraphs per analyzed document")); err != nil {
		log.Warn().Err(err).Msg("Failed to create paragraphs histogram")
	}
	if a.duration, err = meter.Float64Histogram("parasim.analysis.duration",
		metric.WithDescription("Analysis wall time"), metric.WithUnit("s")); err != nil {
		log.Warn().Err(err).Msg("Failed to create duration histogram")
	}
	return a
}

// Analyze segments text, finds similar pairs, and groups them.
func (a *Analyzer) Analyze(ctx context.Context, text string, settings Settings) (models.AnalysisResult, error) {
	start := time.Now()

	backend, err := similarity.NewBackend(settings.Backend, similarity.Options{Buckets: settings.Buckets})
	if err != nil {
		return models.AnalysisResult{}, err
	}

	doc := Segment(text)
	finder := &Finder{
		Backend:   backend,
		Threshold: settings.Threshold,
		Workers:   settings.Workers,
	}
	pairs, err := finder.FindPairs(ctx, doc)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("find pairs: %w", err)
	}
	groups := Group(pairs)

	elapsed := time.Since(start)
	a.record(ctx, backend.Name(), doc.Len(), len(pairs), elapsed)

	log.Debug().
		Str("backend", backend.Name()).
		Float64("threshold", settings.Threshold).
		Int("paragraphs", doc.Len()).
		Int("pairs", len(pairs)).
		Int("groups", len(groups)).
		Dur("elapsed", elapsed).
		Msg("Document analyzed")

	return models.AnalysisResult{Results: groups}, nil
}

// Remove segments text and rebuilds it without the given paragraph indices.
func (a *Analyzer) Remove(text string, indices []int) string {
	doc := Segment(text)
	out := Remove(doc, IndexSetOf(indices...))

	log.Debug().
		Int("paragraphs", doc.Len()).
		Ints("remove", indices).
		Int("bytes", len(out)).
		Msg("Paragraphs removed")

	return out
}

func (a *Analyzer) record(ctx context.Context, backend string, paragraphs, pairs int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	if a.analyses != nil {
		a.analyses.Add(ctx, 1, attrs)
	}
	if a.pairsKept != nil {
		a.pairsKept.Add(ctx, int64(pairs), attrs)
	}
	if a.paragraphs != nil {
		a.paragraphs.Record(ctx, int64(paragraphs), attrs)
	}
	if a.duration != nil {
		a.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
