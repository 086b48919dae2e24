package topics

import "strings"

// Similarity returns the Sørensen–Dice coefficient of the two strings'
// character bigram sets: 0 for unrelated, 1 for identical. The measure
// is symmetric and normalized, matching the filter's contract.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1
	}

	bigramsA := bigrams(a)
	bigramsB := bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	counts := make(map[string]int, len(bigramsA))
	for _, bg := range bigramsA {
		counts[bg]++
	}

	matches := 0
	for _, bg := range bigramsB {
		if counts[bg] > 0 {
			counts[bg]--
			matches++
		}
	}

	return 2 * float64(matches) / float64(len(bigramsA)+len(bigramsB))
}

// bigrams returns the overlapping rune pairs of s, skipping pairs that
// contain whitespace so word boundaries do not inflate similarity.
func bigrams(s string) []string {
	runes := []rune(s)
	pairs := make([]string, 0, len(runes))

	for i := 0; i+1 < len(runes); i++ {
		pair := string(runes[i : i+2])
		if strings.ContainsAny(pair, " \t\n") {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
