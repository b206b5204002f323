package similarity

import "strings"

// Tokenize lower-cases text and splits it on runs of whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// WordSet returns the distinct words of tokens.
func WordSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
