package eval

import (
	"math"
	"strings"
)

const maxNgramOrder = 4

// CorpusBLEU computes corpus-level BLEU over whitespace-tokenized
// candidate/reference sentence pairs: modified n-gram precision for orders
// 1 through 4, clipped against the reference counts, combined as a
// geometric mean and scaled by the brevity penalty.
//
// No smoothing is applied. On very small corpora a missing higher-order
// n-gram match zeroes the whole score, so scores from short test sets are
// only meaningful relative to one another.
func CorpusBLEU(candidates, references []string) float64 {
	if len(candidates) == 0 || len(candidates) != len(references) {
		return 0
	}

	matches := make([]int, maxNgramOrder)
	totals := make([]int, maxNgramOrder)
	var candLen, refLen int

	for i := range candidates {
		cand := strings.Fields(candidates[i])
		ref := strings.Fields(references[i])
		candLen += len(cand)
		refLen += len(ref)

		for n := 1; n <= maxNgramOrder; n++ {
			candCounts := ngramCounts(cand, n)
			refCounts := ngramCounts(ref, n)
			for gram, count := range candCounts {
				totals[n-1] += count
				if allowed, ok := refCounts[gram]; ok {
					if count < allowed {
						matches[n-1] += count
					} else {
						matches[n-1] += allowed
					}
				}
			}
		}
	}

	var logSum float64
	for n := 0; n < maxNgramOrder; n++ {
		if totals[n] == 0 || matches[n] == 0 {
			return 0
		}
		logSum += math.Log(float64(matches[n]) / float64(totals[n]))
	}
	precision := math.Exp(logSum / maxNgramOrder)

	return brevityPenalty(candLen, refLen) * precision
}

// brevityPenalty penalizes candidates shorter than their references
func brevityPenalty(candLen, refLen int) float64 {
	if candLen == 0 {
		return 0
	}
	if candLen >= refLen {
		return 1
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}

func ngramCounts(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}
