package proximity

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Unbounded disables the distance limit.
const Unbounded = -1

// SummaryMode selects how a term's distance list is represented.
type SummaryMode string

const (
	SummaryNone   SummaryMode = "none"
	SummaryMean   SummaryMode = "mean"
	SummaryMedian SummaryMode = "median"
)

// ParseSummaryMode maps a configuration string to a SummaryMode. The empty
// string means SummaryNone.
func ParseSummaryMode(s string) (SummaryMode, error) {
	switch SummaryMode(s) {
	case "", SummaryNone:
		return SummaryNone, nil
	case SummaryMean:
		return SummaryMean, nil
	case SummaryMedian:
		return SummaryMedian, nil
	}
	return "", fmt.Errorf("%w: unknown summarize mode %q", ErrInvalidParams, s)
}

// VicinityParams configures distance extraction for one reference term.
type VicinityParams struct {
	Reference        string
	MaxDistance      int
	Mode             SummaryMode
	IncludeReference bool
}

func (p VicinityParams) validate() error {
	if p.Reference == "" {
		return fmt.Errorf("%w: empty reference term", ErrInvalidParams)
	}
	if p.MaxDistance < Unbounded {
		return fmt.Errorf("%w: max distance %d", ErrInvalidParams, p.MaxDistance)
	}
	if _, err := ParseSummaryMode(string(p.Mode)); err != nil {
		return err
	}
	return nil
}

// VicinityEntry holds either the raw distance list (Mode none) or a single
// summarized value (mean or median), never both.
type VicinityEntry struct {
	Mode      SummaryMode
	Distances []int
	Value     float64
}

// Raw reports whether the entry carries a distance list.
func (e VicinityEntry) Raw() bool { return e.Mode == SummaryNone || e.Mode == "" }

// VicinityMap is the per-document result of distance extraction, relative to
// one reference term and one distance limit. Term order follows the
// document's first-occurrence order.
type VicinityMap struct {
	Reference   string
	MaxDistance int
	Mode        SummaryMode
	terms       []string
	entries     map[string]VicinityEntry
}

// Terms returns the terms present in the map, in insertion order.
func (v *VicinityMap) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Entry returns the entry recorded for term.
func (v *VicinityMap) Entry(term string) (VicinityEntry, bool) {
	e, ok := v.entries[term]
	return e, ok
}

// Len returns the number of terms in the map.
func (v *VicinityMap) Len() int { return len(v.terms) }

// Raw reports whether the map holds distance lists.
func (v *VicinityMap) Raw() bool { return v.Mode == SummaryNone || v.Mode == "" }

// ExtractVicinity computes, for every term of idx, the token distances to the
// reference term that fall within params.MaxDistance. The full cross product
// of positions is computed and the limit applied afterwards. Terms with no
// in-range distance are omitted. A document without the reference term yields
// a *MissingTermError.
func ExtractVicinity(idx *PositionIndex, params VicinityParams) (*VicinityMap, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	mode := params.Mode
	if mode == "" {
		mode = SummaryNone
	}
	refPositions, ok := idx.positions[params.Reference]
	if !ok {
		return nil, &MissingTermError{Term: params.Reference}
	}

	vm := &VicinityMap{
		Reference:   params.Reference,
		MaxDistance: params.MaxDistance,
		Mode:        mode,
		terms:       make([]string, 0, len(idx.terms)),
		entries:     make(map[string]VicinityEntry),
	}
	for _, term := range idx.terms {
		if term == params.Reference && !params.IncludeReference {
			continue
		}
		distances := PairDistances(refPositions, idx.positions[term], params.MaxDistance)
		if len(distances) == 0 {
			continue
		}
		entry := VicinityEntry{Mode: mode}
		switch mode {
		case SummaryMean:
			entry.Value = Mean(distances)
		case SummaryMedian:
			entry.Value = Median(distances)
		default:
			entry.Distances = distances
		}
		vm.terms = append(vm.terms, term)
		vm.entries[term] = entry
	}
	return vm, nil
}

// PairDistances returns |a-b| for every pair drawn from the two position
// lists, in row-major order over a, keeping only values <= max. A max of
// Unbounded keeps every distance.
func PairDistances(a, b []int, max int) []int {
	out := make([]int, 0, len(a)*len(b))
	for _, pa := range a {
		for _, pb := range b {
			d := pa - pb
			if d < 0 {
				d = -d
			}
			if max == Unbounded || d <= max {
				out = append(out, d)
			}
		}
	}
	return out
}

// Mean returns the arithmetic mean of the distances, or 0 for an empty list.
func Mean(distances []int) float64 {
	if len(distances) == 0 {
		return 0
	}
	return stat.Mean(toFloats(distances), nil)
}

// Median returns the middle value of the distances; for an even count it is
// the mean of the two middle values. An empty list yields 0.
func Median(distances []int) float64 {
	n := len(distances)
	if n == 0 {
		return 0
	}
	sorted := toFloats(distances)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func toFloats(in []int) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
