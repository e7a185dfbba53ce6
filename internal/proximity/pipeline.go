package proximity

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Params configures one pipeline run.
type Params struct {
	Reference        string
	MaxDistance      int
	Mode             SummaryMode
	IncludeReference bool
	TopN             int
	Workers          int
}

// Result is the output of Run.
type Result struct {
	Reference string
	Units     int
	Matched   int
	Skipped   int
	Unified   *UnifiedVicinityMap
	Ranked    []RankedTermStat
	// PerUnit holds the summarized map of every matched unit, in unit order,
	// when Params.Mode is mean or median.
	PerUnit []*VicinityMap
}

type unitResult struct {
	raw     *VicinityMap
	summary *VicinityMap
	missing bool
}

// Run indexes every unit, extracts its vicinity around params.Reference,
// merges the matched units in input order and ranks the result. Units are
// processed concurrently; units that lack the reference term are skipped.
func Run(ctx context.Context, units [][]string, params Params) (*Result, error) {
	if len(units) == 0 {
		return nil, ErrNoDocuments
	}
	mode := params.Mode
	if mode == "" {
		mode = SummaryNone
	}
	rawParams := VicinityParams{
		Reference:        params.Reference,
		MaxDistance:      params.MaxDistance,
		Mode:             SummaryNone,
		IncludeReference: params.IncludeReference,
	}
	if err := rawParams.validate(); err != nil {
		return nil, err
	}
	if _, err := ParseSummaryMode(string(mode)); err != nil {
		return nil, err
	}
	if params.TopN < 0 {
		return nil, fmt.Errorf("%w: negative top-n %d", ErrInvalidParams, params.TopN)
	}

	workers := params.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	results := make([]unitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			idx := BuildPositionIndex(units[i])
			raw, err := ExtractVicinity(idx, rawParams)
			if err != nil {
				if IsMissingTerm(err) {
					results[i].missing = true
					return nil
				}
				return fmt.Errorf("unit %d: %w", i, err)
			}
			results[i].raw = raw
			if mode != SummaryNone {
				sp := rawParams
				sp.Mode = mode
				summary, err := ExtractVicinity(idx, sp)
				if err != nil {
					return fmt.Errorf("unit %d: %w", i, err)
				}
				results[i].summary = summary
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Reference: params.Reference,
		Units:     len(units),
	}
	matched := make([]*VicinityMap, 0, len(units))
	for _, r := range results {
		if r.missing {
			res.Skipped++
			continue
		}
		matched = append(matched, r.raw)
		if r.summary != nil {
			res.PerUnit = append(res.PerUnit, r.summary)
		}
	}
	res.Matched = len(matched)

	if len(matched) == 0 {
		res.Unified = NewUnifiedVicinityMap(params.Reference)
	} else {
		unified, err := Merge(matched)
		if err != nil {
			return nil, err
		}
		res.Unified = unified
	}
	res.Ranked = Rank(res.Unified, params.TopN)
	return res, nil
}
