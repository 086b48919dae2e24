package topics_test

import (
	"testing"

	"github.com/jonesrussell/gopost/internal/topics"
)

func TestSimilarity(t *testing.T) {
	testCases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{
			name: "identical",
			a:    "Crypto scam costs victims $10B",
			b:    "Crypto scam costs victims $10B",
			min:  1, max: 1,
		},
		{
			name: "case insensitive",
			a:    "CRYPTO SCAM",
			b:    "crypto scam",
			min:  1, max: 1,
		},
		{
			name: "near duplicate",
			a:    "Crypto scam costs victims $10B",
			b:    "Crypto scam costs victims $10 billion",
			min:  0.71, max: 1,
		},
		{
			name: "unrelated",
			a:    "Crypto scam costs victims $10B",
			b:    "New romance scam ring busted",
			min:  0, max: 0.7,
		},
		{
			name: "empty vs text",
			a:    "",
			b:    "anything at all",
			min:  0, max: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := topics.Similarity(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", tc.a, tc.b, got, tc.min, tc.max)
			}

			// Symmetry is part of the contract.
			reversed := topics.Similarity(tc.b, tc.a)
			if got != reversed {
				t.Errorf("Similarity not symmetric: %v vs %v", got, reversed)
			}
		})
	}
}
