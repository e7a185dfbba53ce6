// Package benchmark contains Go benchmarks for the proximity core, the
// document library and the normalizer, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/proximity"
)

var vocabulary = []string{
	"sensor", "network", "iot", "wireless", "energy", "routing", "protocol",
	"node", "gateway", "cluster", "latency", "edge", "cloud", "device", "data",
}

// syntheticUnits builds n token sequences of the given length. Every unit
// mentions the reference term "network".
func syntheticUnits(n, length int) [][]string {
	r := rand.New(rand.NewSource(42))
	units := make([][]string, n)
	for i := range units {
		u := make([]string, length)
		for j := range u {
			u[j] = vocabulary[r.Intn(len(vocabulary))]
		}
		u[r.Intn(length)] = "network"
		units[i] = u
	}
	return units
}

// BenchmarkBuildPositionIndex measures indexing a single unit of varying
// length.
func BenchmarkBuildPositionIndex(b *testing.B) {
	for _, length := range []int{20, 200, 2000} {
		unit := syntheticUnits(1, length)[0]
		b.Run(fmt.Sprintf("tokens_%d", length), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				idx := proximity.BuildPositionIndex(unit)
				_ = idx
			}
		})
	}
}

// BenchmarkExtractVicinity compares a bounded window against unbounded
// extraction.
func BenchmarkExtractVicinity(b *testing.B) {
	idx := proximity.BuildPositionIndex(syntheticUnits(1, 500)[0])
	limits := []struct {
		name string
		max  int
	}{
		{"limit_4", 4},
		{"limit_20", 20},
		{"unbounded", proximity.Unbounded},
	}
	for _, l := range limits {
		params := proximity.VicinityParams{Reference: "network", MaxDistance: l.max, Mode: proximity.SummaryNone}
		b.Run(l.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				vm, err := proximity.ExtractVicinity(idx, params)
				if err != nil {
					b.Fatal(err)
				}
				_ = vm
			}
		})
	}
}

// BenchmarkMerge measures merging per-unit maps into the unified map.
func BenchmarkMerge(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		units := syntheticUnits(n, 30)
		maps := make([]*proximity.VicinityMap, n)
		for i, u := range units {
			vm, err := proximity.ExtractVicinity(proximity.BuildPositionIndex(u),
				proximity.VicinityParams{Reference: "network", MaxDistance: 4, Mode: proximity.SummaryNone})
			if err != nil {
				b.Fatal(err)
			}
			maps[i] = vm
		}
		b.Run(fmt.Sprintf("units_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				u, err := proximity.Merge(maps)
				if err != nil {
					b.Fatal(err)
				}
				_ = u
			}
		})
	}
}

// BenchmarkRun exercises the full pipeline with an increasing worker count.
func BenchmarkRun(b *testing.B) {
	units := syntheticUnits(500, 40)
	for _, workers := range []int{1, 4, 8} {
		params := proximity.Params{
			Reference:   "network",
			MaxDistance: 4,
			Mode:        proximity.SummaryNone,
			TopN:        15,
			Workers:     workers,
		}
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res, err := proximity.Run(context.Background(), units, params)
				if err != nil {
					b.Fatal(err)
				}
				_ = res
			}
		})
	}
}

// BenchmarkRunSummarized measures the extra cost of per-unit summaries.
func BenchmarkRunSummarized(b *testing.B) {
	units := syntheticUnits(500, 40)
	for _, mode := range []proximity.SummaryMode{proximity.SummaryMean, proximity.SummaryMedian} {
		params := proximity.Params{Reference: "network", MaxDistance: 4, Mode: mode, TopN: 15}
		b.Run(string(mode), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				res, err := proximity.Run(context.Background(), units, params)
				if err != nil {
					b.Fatal(err)
				}
				_ = res
			}
		})
	}
}
