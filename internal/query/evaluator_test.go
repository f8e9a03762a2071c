package query

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/engine"
	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

// Fixture layout by ordinal:
//
//	0: pen/straight/black 0.95 area 1000, plus a small pen region area 100
//	1: pencil/straight/grey 0.5 area 500
//	2: pen/sideways/blue 0.9 area 800, plus a page crop
//	3: no annotations at all
//	4: pen/straight/black 0.3 area 900
//	5: pencil/straight/grey 0.9 area 1000, plus pen/straight/black 0.9 area 100
const evaluatorFixture = `{
	"images": [
		{"id": 1, "file_name": "p0.tif"},
		{"id": 2, "file_name": "p1.tif"},
		{"id": 3, "file_name": "p2.tif"},
		{"id": 4, "file_name": "p3.tif"},
		{"id": 5, "file_name": "p4.tif"},
		{"id": 6, "file_name": "p5.tif"}
	],
	"annotations": [
		{"image_id": 1, "writing_tool": "pen", "orientation": "straight", "color_code": "10-10-10", "score": 0.95, "area": 1000},
		{"image_id": 1, "writing_tool": "pen", "orientation": "straight", "color_code": "10-10-10", "score": 0.95, "area": 100},
		{"image_id": 2, "writing_tool": "pencil", "orientation": "straight", "color_code": "150-150-150", "score": 0.5, "area": 500},
		{"image_id": 3, "writing_tool": "pen", "orientation": "sideways", "color_code": "60-60-190", "score": 0.9, "area": 800},
		{"image_id": 3, "page_position": [0.5, 0.5, 0.9, 0.9], "score": 0.99},
		{"image_id": 5, "writing_tool": "pen", "orientation": "straight", "color_code": "10-10-10", "score": 0.3, "area": 900},
		{"image_id": 6, "writing_tool": "pencil", "orientation": "straight", "color_code": "150-150-150", "score": 0.9, "area": 1000},
		{"image_id": 6, "writing_tool": "pen", "orientation": "straight", "color_code": "10-10-10", "score": 0.9, "area": 100}
	]
}`

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "herbar.json")
	if err := os.WriteFile(path, []byte(evaluatorFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New("herbar", path, catalogue.NewLoader(dir))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func evaluate(t *testing.T, eng *engine.Engine, plan *Plan) *Result {
	t.Helper()
	result, err := NewEvaluator(slog.Default()).Evaluate(context.Background(), eng, plan)
	if err != nil {
		t.Fatalf("Evaluate(%s): %v", plan.Describe(), err)
	}
	return result
}

func hitOrdinals(result *Result) []int {
	out := make([]int, len(result.Pages))
	for i, hit := range result.Pages {
		out[i] = hit.Ordinal
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluateEmptyPlanMatchesAllInOrder(t *testing.T) {
	eng := newTestEngine(t)
	result := evaluate(t, eng, &Plan{Collection: "herbar"})

	if !equalInts(hitOrdinals(result), []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("empty plan hits = %v, want every page in catalogue order", hitOrdinals(result))
	}
	if result.TotalHits != 6 {
		t.Errorf("TotalHits = %d, want 6", result.TotalHits)
	}
}

func TestEvaluateRegionlessPageOnlyMatchesEmptyPlan(t *testing.T) {
	eng := newTestEngine(t)

	// Page 3 has no annotations. The empty plan includes it anyway.
	result := evaluate(t, eng, &Plan{Collection: "herbar"})
	found := false
	for _, hit := range result.Pages {
		if hit.Ordinal == 3 {
			found = true
			if len(hit.Regions) != 0 {
				t.Errorf("region-less page came back with %d regions", len(hit.Regions))
			}
		}
	}
	if !found {
		t.Error("empty plan omits the page without annotations")
	}

	// Any region filter demands a surviving region, so the same page drops
	// out once a score floor is set.
	result = evaluate(t, eng, &Plan{Collection: "herbar", MinScore: 0.1})
	for _, hit := range result.Pages {
		if hit.Ordinal == 3 {
			t.Error("score-filtered plan must not match the page without annotations")
		}
	}
}

func TestEvaluateSingleCriterion(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}},
	})
	if !equalInts(hitOrdinals(result), []int{0, 2, 4, 5}) {
		t.Errorf("pen hits = %v, want [0 2 4 5]", hitOrdinals(result))
	}
	if result.CandidateCounts[catalogue.AttrImplement] != 4 {
		t.Errorf("candidate count = %d, want 4", result.CandidateCounts[catalogue.AttrImplement])
	}
}

func TestEvaluateConjunction(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria: []Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
			{Attribute: catalogue.AttrOrientation, Values: []string{"sideways"}},
		},
	})
	if !equalInts(hitOrdinals(result), []int{2}) {
		t.Errorf("pen+sideways hits = %v, want [2]", hitOrdinals(result))
	}

	// The joint-region requirement: page 2's pen region is sideways, so
	// pen+straight must not match it.
	result = evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria: []Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
			{Attribute: catalogue.AttrOrientation, Values: []string{"straight"}},
		},
	})
	if !equalInts(hitOrdinals(result), []int{0, 4, 5}) {
		t.Errorf("pen+straight hits = %v, want [0 4 5]", hitOrdinals(result))
	}
}

func TestEvaluateMultiValueCriterion(t *testing.T) {
	eng := newTestEngine(t)
	result := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrColour, Values: []string{"blue", "grey"}}},
	})
	if !equalInts(hitOrdinals(result), []int{1, 2, 5}) {
		t.Errorf("blue|grey hits = %v, want [1 2 5]", hitOrdinals(result))
	}
}

func TestEvaluateScoreThreshold(t *testing.T) {
	eng := newTestEngine(t)
	result := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}},
		MinScore:   0.8,
	})
	// Page 4's only region scores 0.3 and drops out.
	if !equalInts(hitOrdinals(result), []int{0, 2, 5}) {
		t.Errorf("pen score>=0.8 hits = %v, want [0 2 5]", hitOrdinals(result))
	}
}

func TestEvaluateAreaRatioNarrowsRegions(t *testing.T) {
	eng := newTestEngine(t)

	// Page 5's pen region (area 100) is below half of the page's largest
	// region (1000), so pen + min_area 0.5 excludes the page.
	result := evaluate(t, eng, &Plan{
		Collection:   "herbar",
		Criteria:     []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}},
		MinAreaRatio: 0.5,
	})
	if !equalInts(hitOrdinals(result), []int{0, 2, 4}) {
		t.Errorf("pen min_area=0.5 hits = %v, want [0 2 4]", hitOrdinals(result))
	}

	// Page 0 still matches: its large pen region survives its own cut.
	for _, hit := range result.Pages {
		if hit.Ordinal == 0 && len(hit.Regions) != 1 {
			t.Errorf("page 0 surviving regions = %d, want 1", len(hit.Regions))
		}
	}
}

func TestEvaluateNoText(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, &Plan{Collection: "herbar", NoText: true})
	if !equalInts(hitOrdinals(result), []int{3}) {
		t.Errorf("no-text hits = %v, want [3]", hitOrdinals(result))
	}

	// With a score floor, pages whose regions all fall below it count as
	// textless too.
	result = evaluate(t, eng, &Plan{Collection: "herbar", NoText: true, MinScore: 0.6})
	if !equalInts(hitOrdinals(result), []int{1, 3, 4}) {
		t.Errorf("no-text score>=0.6 hits = %v, want [1 3 4]", hitOrdinals(result))
	}
}

func TestEvaluateNoTextWithCriteriaIsEmpty(t *testing.T) {
	eng := newTestEngine(t)
	result := evaluate(t, eng, &Plan{
		Collection: "herbar",
		NoText:     true,
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}},
	})
	if result.TotalHits != 0 {
		t.Errorf("no-text with criteria hits = %d, want 0", result.TotalHits)
	}
}

func TestEvaluateUnknownValueFailsWithoutPartialResults(t *testing.T) {
	eng := newTestEngine(t)
	result, err := NewEvaluator(slog.Default()).Evaluate(context.Background(), eng, &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"brush"}}},
	})
	if !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
	if result != nil {
		t.Errorf("rejected query must not return results, got %+v", result)
	}
}

func TestEvaluateMonotonicity(t *testing.T) {
	eng := newTestEngine(t)

	broad := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}},
	})
	narrow := evaluate(t, eng, &Plan{
		Collection: "herbar",
		Criteria: []Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
			{Attribute: catalogue.AttrColour, Values: []string{"blue"}},
		},
		MinScore: 0.8,
	})

	broadSet := make(map[int]bool)
	for _, o := range hitOrdinals(broad) {
		broadSet[o] = true
	}
	for _, o := range hitOrdinals(narrow) {
		if !broadSet[o] {
			t.Errorf("narrow result contains page %d missing from broad result", o)
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	plan := &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pencil"}}},
	}
	first := evaluate(t, eng, plan)
	second := evaluate(t, eng, plan)
	if !equalInts(hitOrdinals(first), hitOrdinals(second)) {
		t.Errorf("repeated evaluation differs: %v vs %v", hitOrdinals(first), hitOrdinals(second))
	}
}
