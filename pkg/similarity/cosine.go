package similarity

import "math"

// Cosine scores texts by the cosine of binary word-presence vectors built
// over the union of both texts' words. Word multiplicity is ignored.
type Cosine struct{}

// NewCosine creates the binary-presence cosine backend.
func NewCosine() *Cosine {
	return &Cosine{}
}

// Name implements Backend.
func (c *Cosine) Name() string {
	return BackendCosine
}

// Vectorize implements Backend.
func (c *Cosine) Vectorize(text string) Vector {
	return presenceVector(WordSet(Tokenize(text)))
}

// presenceVector is the set of words present in a text. Over the word union
// each present word is a 1 component, so the set fully describes the vector.
type presenceVector map[string]struct{}

// Empty implements Vector.
func (v presenceVector) Empty() bool {
	return len(v) == 0
}

// Similarity implements Vector. For binary vectors the dot product is the
// size of the intersection and each norm is the square root of the set size.
// Returns NaN when either set is empty and 0 for vectors of another backend.
func (v presenceVector) Similarity(other Vector) float64 {
	o, ok := other.(presenceVector)
	if !ok {
		return 0
	}

	small, large := v, o
	if len(small) > len(large) {
		small, large = large, small
	}
	dot := 0
	for word := range small {
		if _, found := large[word]; found {
			dot++
		}
	}

	// sqrt(|A|*|B|) rather than sqrt(|A|)*sqrt(|B|) keeps score(a,a) exactly 1.
	magnitude := math.Sqrt(float64(len(v) * len(o)))
	return float64(dot) / magnitude
}
