package cache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
)

func TestKeyEquivalentPlansShareAKey(t *testing.T) {
	a := &query.Plan{
		Collection: "herbar",
		Criteria: []query.Criterion{
			{Attribute: catalogue.AttrOrientation, Values: []string{"straight", "sideways"}},
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
		},
		MinScore: 0.8,
	}
	b := &query.Plan{
		Collection: "herbar",
		Criteria: []query.Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
			{Attribute: catalogue.AttrOrientation, Values: []string{"sideways", "straight"}},
		},
		MinScore: 0.8,
	}
	if Key(a) != Key(b) {
		t.Errorf("equivalent plans got different keys: %s vs %s", Key(a), Key(b))
	}
}

func TestKeyDistinguishesPlansAndCollections(t *testing.T) {
	seen := make(map[string]string)
	plans := []*query.Plan{
		{Collection: "herbar"},
		{Collection: "letters"},
		{Collection: "herbar", MinScore: 0.8},
		{Collection: "herbar", NoText: true},
		{Collection: "herbar", Criteria: []query.Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}}},
	}
	for _, plan := range plans {
		key := Key(plan)
		if !strings.HasPrefix(key, keyPrefix) {
			t.Errorf("key %q missing prefix %q", key, keyPrefix)
		}
		if prev, dup := seen[key]; dup {
			t.Errorf("plans %q and %q collide on key %s", prev, plan.Normalize(), key)
		}
		seen[key] = plan.Normalize()
	}
}

func TestGetOrComputeWithoutRedis(t *testing.T) {
	// A nil cache (Redis unavailable) must pass straight through to compute.
	var c *QueryCache

	want := &query.Result{Collection: "herbar", TotalHits: 2}
	got, cacheHit, err := c.GetOrCompute(context.Background(), &query.Plan{Collection: "herbar"},
		func(ctx context.Context) (*query.Result, error) { return want, nil })
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if cacheHit {
		t.Error("nil cache reported a hit")
	}
	if got != want {
		t.Error("nil cache should return the computed result unchanged")
	}

	computeErr := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), &query.Plan{Collection: "herbar"},
		func(ctx context.Context) (*query.Result, error) { return nil, computeErr }); !errors.Is(err, computeErr) {
		t.Errorf("error = %v, want compute error", err)
	}

	if stats := c.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("nil cache stats = %+v, want zeros", stats)
	}
}
