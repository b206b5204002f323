// Package similarity provides lexical text similarity backends.
//
// A Backend turns text into a Vector; two vectors from the same backend
// compare to a symmetric score in [0,1]. Vectors from different backends
// never match, so one backend must be used for a whole analysis run.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Backend names.
const (
	BackendCosine = "cosine"
	BackendHashed = "hashed"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendCosine

// ErrUnknownBackend is returned by NewBackend for unregistered names.
var ErrUnknownBackend = errors.New("unknown similarity backend")

// Backend vectorizes text for comparison.
type Backend interface {
	// Name returns the registered backend name.
	Name() string
	// Vectorize builds the comparison vector for text.
	Vectorize(text string) Vector
}

// Vector is a backend-specific representation of one text.
type Vector interface {
	// Similarity returns the raw score against other. It may be NaN when
	// either side has no tokens; callers should go through Clamp.
	Similarity(other Vector) float64
	// Empty reports whether the text produced no tokens.
	Empty() bool
}

// Options configures backend construction.
type Options struct {
	// Buckets is the hashed backend vector width. Zero means DefaultBuckets.
	Buckets int
}

// NewBackend builds a backend by name.
func NewBackend(name string, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendCosine:
		return NewCosine(), nil
	case BackendHashed:
		return NewHashed(opts.Buckets), nil
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, strings.Join(Names(), ", "))
	}
}

// Names lists the available backend names.
func Names() []string {
	names := []string{BackendCosine, BackendHashed}
	sort.Strings(names)
	return names
}

// Clamp maps a raw score into [0,1]. NaN and negative values become 0 so a
// degenerate comparison never counts as a match.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// Score compares two texts with backend b.
func Score(b Backend, x, y string) float64 {
	return Compare(b.Vectorize(x), b.Vectorize(y))
}

// Compare scores two prepared vectors.
func Compare(x, y Vector) float64 {
	if x == nil || y == nil || x.Empty() || y.Empty() {
		return 0
	}
	return Clamp(x.Similarity(y))
}
