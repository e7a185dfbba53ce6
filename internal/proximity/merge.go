package proximity

import "fmt"

// UnifiedVicinityMap is the corpus-wide concatenation of raw distance lists.
// Term order is the order in which terms first appear across the merged
// documents, taken in input order.
type UnifiedVicinityMap struct {
	Reference string
	terms     []string
	distances map[string][]int
}

// NewUnifiedVicinityMap returns an empty map for reference.
func NewUnifiedVicinityMap(reference string) *UnifiedVicinityMap {
	return &UnifiedVicinityMap{
		Reference: reference,
		terms:     make([]string, 0),
		distances: make(map[string][]int),
	}
}

// Terms returns the terms in insertion order.
func (u *UnifiedVicinityMap) Terms() []string {
	out := make([]string, len(u.terms))
	copy(out, u.terms)
	return out
}

// Distances returns a copy of the concatenated distances for term.
func (u *UnifiedVicinityMap) Distances(term string) []int {
	d, ok := u.distances[term]
	if !ok {
		return nil
	}
	out := make([]int, len(d))
	copy(out, d)
	return out
}

// Len returns the number of distinct terms.
func (u *UnifiedVicinityMap) Len() int { return len(u.terms) }

func (u *UnifiedVicinityMap) add(term string, distances []int) {
	existing, ok := u.distances[term]
	if !ok {
		u.terms = append(u.terms, term)
		existing = make([]int, 0, len(distances))
	}
	u.distances[term] = append(existing, distances...)
}

// Merge concatenates the raw distance lists of every map, visiting maps in
// input order and terms in each map's order. Nil maps are skipped. It fails
// with ErrNoDocuments when no map is left and with ErrSummarizedMerge if any
// map holds summarized values.
func Merge(maps []*VicinityMap) (*UnifiedVicinityMap, error) {
	var u *UnifiedVicinityMap
	for i, vm := range maps {
		if vm == nil {
			continue
		}
		if u == nil {
			u = NewUnifiedVicinityMap(vm.Reference)
		}
		if !vm.Raw() {
			return nil, fmt.Errorf("document %d (mode %s): %w", i, vm.Mode, ErrSummarizedMerge)
		}
		for _, term := range vm.terms {
			u.add(term, vm.entries[term].Distances)
		}
	}
	if u == nil {
		return nil, ErrNoDocuments
	}
	return u, nil
}
