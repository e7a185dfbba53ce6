// Package proximity computes term-proximity networks: which terms occur near a
// reference term, how often, and at what typical token distance.
//
// The package is pure. It consumes already-normalized token sequences and never
// performs I/O; retrieval and text normalization live in other packages.
package proximity

// PositionIndex maps each term of one document to the ascending offsets at
// which it occurs. Terms are kept in first-occurrence order.
type PositionIndex struct {
	terms     []string
	positions map[string][]int
	length    int
}

// BuildPositionIndex records, for every token at offset i, the position i
// under that token's term.
func BuildPositionIndex(tokens []string) *PositionIndex {
	idx := &PositionIndex{
		terms:     make([]string, 0, len(tokens)),
		positions: make(map[string][]int),
		length:    len(tokens),
	}
	for i, tok := range tokens {
		p, exists := idx.positions[tok]
		if !exists {
			idx.terms = append(idx.terms, tok)
			p = make([]int, 0, 2)
		}
		idx.positions[tok] = append(p, i)
	}
	return idx
}

// Terms returns the distinct terms in first-occurrence order.
func (p *PositionIndex) Terms() []string {
	out := make([]string, len(p.terms))
	copy(out, p.terms)
	return out
}

// Positions returns a copy of the offsets recorded for term, or nil.
func (p *PositionIndex) Positions(term string) []int {
	pos, ok := p.positions[term]
	if !ok {
		return nil
	}
	out := make([]int, len(pos))
	copy(out, pos)
	return out
}

// Contains reports whether term occurs in the document.
func (p *PositionIndex) Contains(term string) bool {
	_, ok := p.positions[term]
	return ok
}

// Len returns the number of distinct terms.
func (p *PositionIndex) Len() int { return len(p.terms) }

// DocumentLength returns the number of tokens the index was built from.
func (p *PositionIndex) DocumentLength() int { return p.length }
