package proximity

import "sort"

// TermCount is a term with the number of distances recorded for it.
type TermCount struct {
	Term      string
	Frequency int
}

// RankedTermStat is one neighbour of the reference term in the final ranking.
type RankedTermStat struct {
	Term      string  `json:"term"`
	Frequency int     `json:"frequency"`
	Distance  float64 `json:"distance"`
}

// Frequencies returns the frequency of every term in insertion order.
func (u *UnifiedVicinityMap) Frequencies() []TermCount {
	out := make([]TermCount, 0, len(u.terms))
	for _, term := range u.terms {
		out = append(out, TermCount{Term: term, Frequency: len(u.distances[term])})
	}
	return out
}

// Rank orders terms by descending frequency and keeps the first topN. Equal
// frequencies keep insertion order. Each selected term's distance is the
// median of its raw distances. A non-positive topN yields an empty ranking.
func Rank(u *UnifiedVicinityMap, topN int) []RankedTermStat {
	if u == nil || topN <= 0 {
		return []RankedTermStat{}
	}
	counts := u.Frequencies()
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Frequency > counts[j].Frequency
	})
	if len(counts) > topN {
		counts = counts[:topN]
	}
	result := make([]RankedTermStat, 0, len(counts))
	for _, c := range counts {
		result = append(result, RankedTermStat{
			Term:      c.Term,
			Frequency: c.Frequency,
			Distance:  Median(u.distances[c.Term]),
		})
	}
	return result
}
