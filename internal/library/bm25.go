package library

import (
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

type scoredDoc struct {
	docID string
	score float64
}

// score ranks candidates by BM25 over terms, highest first, ties by document
// ID. Must be called with the read lock.
func (l *Library) score(terms []string, candidates map[string]bool) []scoredDoc {
	n := float64(len(l.docs))
	avgLen := 0.0
	if n > 0 {
		avgLen = float64(l.totalLen) / n
	}
	scores := make(map[string]float64, len(candidates))
	for id := range candidates {
		scores[id] = 0
	}
	for _, term := range uniqueTerms(terms) {
		postings := l.index[term]
		idf := computeIDF(n, float64(len(postings)))
		for id, p := range postings {
			if !candidates[id] {
				continue
			}
			scores[id] += idf * computeTFNorm(float64(p.frequency), float64(l.docs[id].length), avgLen)
		}
	}

	result := make([]scoredDoc, 0, len(scores))
	for id, s := range scores {
		result = append(result, scoredDoc{docID: id, score: s})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].score != result[j].score {
			return result[i].score > result[j].score
		}
		return result[i].docID < result[j].docID
	})
	return result
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func computeIDF(totalDocs, docFreq float64) float64 {
	return math.Log((totalDocs-docFreq+0.5)/(docFreq+0.5) + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	denominator := termFreq + k1*(1-b+b*docLength/avgDocLength)
	return termFreq * (k1 + 1) / denominator
}
