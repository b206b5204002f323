package similarity

import (
	"strings"
	"unicode/utf16"
)

// DefaultBuckets is the default width of hashed term-frequency vectors.
const DefaultBuckets = 100

// Hashed scores texts by hashing each word into a fixed number of buckets,
// counting occurrences, and applying the bounded kernel 1 / (1 + L1 distance).
// Words are used as written; no case folding is applied.
type Hashed struct {
	buckets int
}

// NewHashed creates a hashed-frequency backend. Non-positive widths fall
// back to DefaultBuckets.
func NewHashed(buckets int) *Hashed {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	return &Hashed{buckets: buckets}
}

// Name implements Backend.
func (h *Hashed) Name() string {
	return BackendHashed
}

// Buckets returns the vector width.
func (h *Hashed) Buckets() int {
	return h.buckets
}

// Vectorize implements Backend.
func (h *Hashed) Vectorize(text string) Vector {
	words := strings.Fields(text)
	counts := make([]float64, h.buckets)
	for _, w := range words {
		counts[Bucket(w, h.buckets)]++
	}
	return frequencyVector{counts: counts, words: len(words)}
}

// Bucket maps a word to [0, buckets) using a 32-bit wrapping rolling hash
// (h = h*31 + c) over the word's UTF-16 code units.
func Bucket(word string, buckets int) int {
	var hash int32
	for _, c := range utf16.Encode([]rune(word)) {
		hash = hash*31 + int32(c)
	}
	// Widen before taking the absolute value so MinInt32 stays positive.
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(buckets))
}

type frequencyVector struct {
	counts []float64
	words  int
}

// Empty implements Vector.
func (v frequencyVector) Empty() bool {
	return v.words == 0
}

// Similarity implements Vector. Vectors of a different width or backend
// score 0.
func (v frequencyVector) Similarity(other Vector) float64 {
	o, ok := other.(frequencyVector)
	if !ok || len(o.counts) != len(v.counts) {
		return 0
	}

	var distance float64
	for i := range v.counts {
		d := v.counts[i] - o.counts[i]
		if d < 0 {
			d = -d
		}
		distance += d
	}
	return 1 / (1 + distance)
}
