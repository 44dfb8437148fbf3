// Package ngrambleu implements the sentence-similarity metric behind
// commenteval's SentenceScorer seam: classic sentence-level BLEU (n=4,
// geometric mean of 1..4-gram modified precisions times a brevity
// penalty), scored 0-100. A candidate shorter than n tokens is scored on
// the orders up to its own length only. Deployments with a heavier NLP metric can
// substitute their own SentenceScorer; this one keeps the server
// self-contained.
package ngrambleu

import (
	"math"
	"strings"
)

// Scorer computes sentence-level BLEU-n against a single reference.
type Scorer struct {
	MaxN int
}

// New returns a Scorer using the conventional 4-gram BLEU.
func New() *Scorer {
	return &Scorer{MaxN: 4}
}

// Score returns a 0-100 BLEU score for candidate against reference.
func (s *Scorer) Score(candidate, reference string) float64 {
	n := s.MaxN
	if n < 1 {
		n = 4
	}

	candTokens := tokenize(candidate)
	refTokens := tokenize(reference)
	if len(candTokens) == 0 {
		return 0
	}

	var logPrecisionSum float64
	validOrders := 0
	for order := 1; order <= n; order++ {
		if len(candTokens) < order {
			break
		}
		p := modifiedPrecision(candTokens, refTokens, order)
		if p == 0 {
			// Standard BLEU gives a score of 0 if any n-gram precision is
			// zero (before smoothing); no smoothing is applied here.
			return 0
		}
		logPrecisionSum += math.Log(p)
		validOrders++
	}
	if validOrders == 0 {
		return 0
	}

	geoMean := math.Exp(logPrecisionSum / float64(validOrders))
	bp := brevityPenalty(len(candTokens), len(refTokens))

	return round2(geoMean * bp * 100)
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	if len(tokens) < n {
		return counts
	}
	for i := 0; i+n <= len(tokens); i++ {
		key := strings.Join(tokens[i:i+n], " ")
		counts[key]++
	}
	return counts
}

func modifiedPrecision(candidate, reference []string, n int) float64 {
	candCounts := ngrams(candidate, n)
	refCounts := ngrams(reference, n)

	var matched, total int
	for gram, count := range candCounts {
		total += count
		if refCount, ok := refCounts[gram]; ok {
			if refCount < count {
				matched += refCount
			} else {
				matched += count
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func brevityPenalty(candLen, refLen int) float64 {
	if candLen == 0 {
		return 0
	}
	if candLen > refLen {
		return 1
	}
	if refLen == 0 {
		return 1
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
