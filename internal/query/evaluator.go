package query

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/engine"
	"github.com/Hussein-Mohammed/ScriptSight/internal/index"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/tracing"
)

// Evaluator runs plans against a collection engine. It is stateless and
// safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{logger: logger.With("component", "evaluator")}
}

// Evaluate validates the plan, narrows candidates through the attribute
// index, then verifies each candidate's regions against the full filter
// chain. Results come back in catalogue order.
func (ev *Evaluator) Evaluate(ctx context.Context, eng *engine.Engine, plan *Plan) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "query.evaluate")
	defer span.End()

	cat := eng.Catalogue()
	if err := Validate(plan, cat.Vocabulary()); err != nil {
		return nil, err
	}

	result := &Result{
		Collection:      plan.Collection,
		Pages:           []PageHit{},
		CandidateCounts: make(map[string]int),
	}

	// A no-text page has no regions left to satisfy a categorical
	// criterion, so the combination is empty by construction.
	if plan.NoText && len(plan.Criteria) > 0 {
		return result, nil
	}

	candidates, err := ev.candidates(ctx, eng, plan, result.CandidateCounts)
	if err != nil {
		return nil, err
	}

	for _, ordinal := range candidates {
		rec := cat.Records()[ordinal]
		regions, ok := matchRegions(rec, plan)
		if !ok {
			continue
		}
		result.Pages = append(result.Pages, PageHit{
			PageID:    rec.ID,
			FileName:  rec.FileName,
			Ordinal:   rec.Ordinal,
			ImagePath: rec.ImagePath,
			Regions:   regions,
		})
	}
	result.TotalHits = len(result.Pages)

	ev.logger.DebugContext(ctx, "query evaluated",
		"collection", plan.Collection,
		"query", plan.Describe(),
		"candidates", len(candidates),
		"hits", result.TotalHits)
	return result, nil
}

// candidates returns the ordinals of pages that could match, in ascending
// order. With no categorical criteria (or in no-text mode, where the index
// cannot help) every page is a candidate; otherwise the per-criterion
// posting lists are intersected smallest-first.
func (ev *Evaluator) candidates(ctx context.Context, eng *engine.Engine, plan *Plan, counts map[string]int) ([]int, error) {
	cat := eng.Catalogue()
	if len(plan.Criteria) == 0 || plan.NoText {
		all := make([]int, cat.Len())
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	idx := eng.Index()
	lists := make([]index.PostingList, 0, len(plan.Criteria))
	for _, c := range plan.Criteria {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list := idx.LookupAny(c.Attribute, c.Values)
		counts[c.Attribute] = len(list)
		if len(list) == 0 {
			return nil, nil
		}
		lists = append(lists, list)
	}
	return intersect(lists), nil
}

// intersect computes the ordinals present in every posting list, seeding
// from the smallest list so the candidate set only ever shrinks.
func intersect(lists []index.PostingList) []int {
	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })

	candidates := make(map[int]struct{}, len(lists[0]))
	for _, p := range lists[0] {
		candidates[p.Ordinal] = struct{}{}
	}
	for _, list := range lists[1:] {
		if len(candidates) == 0 {
			return nil
		}
		present := make(map[int]struct{}, len(list))
		for _, p := range list {
			present[p.Ordinal] = struct{}{}
		}
		for ordinal := range candidates {
			if _, ok := present[ordinal]; !ok {
				delete(candidates, ordinal)
			}
		}
	}

	out := make([]int, 0, len(candidates))
	for ordinal := range candidates {
		out = append(out, ordinal)
	}
	sort.Ints(out)
	return out
}

// matchRegions applies the region-level filter chain to one page and
// returns the regions that survive every stage. The chain is ordered:
// score threshold, relative-area threshold against the page's largest
// surviving region, then each categorical criterion in turn. A page
// matches only if at least one region survives the whole chain.
func matchRegions(rec *catalogue.PageRecord, plan *Plan) ([]catalogue.Region, bool) {
	kept := make([]catalogue.Region, 0, len(rec.Regions))
	for _, r := range rec.TextRegions() {
		if r.Score >= plan.MinScore {
			kept = append(kept, r)
		}
	}

	if plan.NoText {
		return nil, len(kept) == 0
	}
	if len(kept) == 0 {
		// Only an empty plan accepts a page with nothing on it; any score,
		// area, or categorical filter needs a surviving region.
		return nil, plan.Empty()
	}

	if plan.MinAreaRatio > 0 {
		largest := 0.0
		for _, r := range kept {
			if r.Area > largest {
				largest = r.Area
			}
		}
		threshold := plan.MinAreaRatio * largest
		filtered := kept[:0]
		for _, r := range kept {
			if r.Area >= threshold {
				filtered = append(filtered, r)
			}
		}
		kept = filtered
		if len(kept) == 0 {
			return nil, false
		}
	}

	for _, c := range plan.Criteria {
		filtered := make([]catalogue.Region, 0, len(kept))
		for _, r := range kept {
			if contains(c.Values, r.Value(c.Attribute)) {
				filtered = append(filtered, r)
			}
		}
		kept = filtered
		if len(kept) == 0 {
			return nil, false
		}
	}
	return kept, true
}
