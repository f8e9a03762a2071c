package query

import (
	"testing"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
)

func TestNormalizeOrderIndependent(t *testing.T) {
	a := &Plan{
		Collection: "herbar",
		Criteria: []Criterion{
			{Attribute: catalogue.AttrOrientation, Values: []string{"straight", "sideways"}},
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
		},
		MinScore: 0.8,
	}
	b := &Plan{
		Collection: "herbar",
		Criteria: []Criterion{
			{Attribute: catalogue.AttrImplement, Values: []string{"pen"}},
			{Attribute: catalogue.AttrOrientation, Values: []string{"sideways", "straight"}},
		},
		MinScore: 0.8,
	}
	if a.Normalize() != b.Normalize() {
		t.Errorf("equivalent plans normalise differently:\n%s\n%s", a.Normalize(), b.Normalize())
	}
}

func TestNormalizeDistinguishesPlans(t *testing.T) {
	base := &Plan{Collection: "herbar", MinScore: 0.8}
	variants := []*Plan{
		{Collection: "herbar", MinScore: 0.9},
		{Collection: "other", MinScore: 0.8},
		{Collection: "herbar", MinScore: 0.8, NoText: true},
		{Collection: "herbar", MinScore: 0.8, MinAreaRatio: 0.3},
		{Collection: "herbar", MinScore: 0.8,
			Criteria: []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen"}}}},
	}
	for i, v := range variants {
		if base.Normalize() == v.Normalize() {
			t.Errorf("variant %d normalises same as base: %s", i, v.Normalize())
		}
	}
}

func TestDescribe(t *testing.T) {
	empty := &Plan{Collection: "herbar"}
	if empty.Describe() != "all" {
		t.Errorf("empty plan describes as %q, want all", empty.Describe())
	}

	plan := &Plan{
		Collection: "herbar",
		Criteria:   []Criterion{{Attribute: catalogue.AttrImplement, Values: []string{"pen", "pencil"}}},
		MinScore:   0.8,
	}
	want := "implement:pen,pencil score>=0.80"
	if got := plan.Describe(); got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}
}

func TestPlanValues(t *testing.T) {
	plan := &Plan{
		Criteria: []Criterion{{Attribute: catalogue.AttrColour, Values: []string{"blue"}}},
	}
	if got := plan.Values(catalogue.AttrColour); len(got) != 1 || got[0] != "blue" {
		t.Errorf("Values(colour) = %v", got)
	}
	if got := plan.Values(catalogue.AttrImplement); got != nil {
		t.Errorf("Values(implement) = %v, want nil", got)
	}
}
