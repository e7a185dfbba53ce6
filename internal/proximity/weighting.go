package proximity

import (
	"fmt"
	"strings"
)

// WeightMode selects how many times each ranked document is repeated before
// the corpus is built.
//
// The repetition scheme is a rough approximation of rank relevance: earlier
// documents are duplicated so their terms count more. It is kept for
// compatibility and has not been validated as a relevance model.
type WeightMode string

const (
	WeightNone    WeightMode = "none"
	WeightLinear  WeightMode = "linear"
	WeightInverse WeightMode = "inverse"
)

// ParseWeightMode maps a configuration string to a WeightMode. The empty
// string means WeightNone.
func ParseWeightMode(s string) (WeightMode, error) {
	switch WeightMode(s) {
	case "", WeightNone:
		return WeightNone, nil
	case WeightLinear:
		return WeightLinear, nil
	case WeightInverse:
		return WeightInverse, nil
	}
	return "", fmt.Errorf("%w: unknown weight mode %q", ErrInvalidParams, s)
}

// Copies returns the number of times the document at 0-based rank contributes
// to a corpus of n documents.
//
//	none:    1
//	linear:  n - rank
//	inverse: ceil(n / (rank + 1))
func Copies(rank, n int, mode WeightMode) int {
	if n <= 0 || rank < 0 || rank >= n {
		return 0
	}
	switch mode {
	case WeightLinear:
		return n - rank
	case WeightInverse:
		return (n + rank) / (rank + 1)
	default:
		return 1
	}
}

// WeightDocuments concatenates the ranked document texts into one blob, each
// repeated according to mode. Every copy is separated by a space so that the
// sentence delimiter at the end of one copy never fuses with the next.
func WeightDocuments(texts []string, mode WeightMode) string {
	n := len(texts)
	var b strings.Builder
	for rank, text := range texts {
		copies := Copies(rank, n, mode)
		for c := 0; c < copies; c++ {
			b.WriteByte(' ')
			b.WriteString(text)
			if mode != WeightNone && mode != "" {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// SplitUnits splits a weighted blob on the sentence delimiter '.' into
// paragraph-like units, each tokenized independently downstream. Blank units
// are dropped.
func SplitUnits(blob string) []string {
	parts := strings.Split(blob, ".")
	units := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		units = append(units, p)
	}
	return units
}
