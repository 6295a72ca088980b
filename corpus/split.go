package corpus

import (
	"fmt"
	"math/rand"
)

// Split holds the three disjoint corpus partitions. Their union is the full
// corpus: |Val| = |Test| = floor(0.15 x n), Train takes the remainder.
type Split struct {
	Train []Pair
	Val   []Pair
	Test  []Pair
}

// holdoutFraction is the share of the corpus reserved for each of the
// validation and test partitions.
const holdoutFraction = 0.15

// SplitPairs shuffles the corpus with the given seed and partitions it.
// The seed is explicit: two calls with the same corpus and seed produce
// identical partitions, and callers that do not care should still pick one
// and record it, because an unseeded shuffle makes every downstream result
// unreproducible.
func SplitPairs(pairs []Pair, seed int64) (*Split, error) {
	n := len(pairs)
	holdout := int(float64(n) * holdoutFraction)
	if n == 0 || n-2*holdout <= 0 {
		return nil, fmt.Errorf("corpus too small to split: %d pairs", n)
	}

	shuffled := make([]Pair, n)
	copy(shuffled, pairs)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return &Split{
		Train: shuffled[:n-2*holdout],
		Val:   shuffled[n-2*holdout : n-holdout],
		Test:  shuffled[n-holdout:],
	}, nil
}
