// Package query parses, validates, and evaluates conjunctive multi-attribute
// filter queries against a collection's catalogue and attribute index.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Criterion is one categorical constraint: the page must have a text region
// whose attribute value is in Values.
type Criterion struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
}

// Plan is a parsed query: categorical criteria combined conjunctively plus
// region-level range filters. The zero plan matches every page.
type Plan struct {
	Collection string      `json:"collection"`
	Criteria   []Criterion `json:"criteria,omitempty"`
	// MinScore drops regions below this detection confidence before any
	// other filter is applied.
	MinScore float64 `json:"min_score,omitempty"`
	// MinAreaRatio drops regions smaller than this fraction of the largest
	// surviving region on the same page.
	MinAreaRatio float64 `json:"min_area_ratio,omitempty"`
	// NoText selects pages with no surviving text regions instead.
	NoText bool `json:"no_text,omitempty"`
}

// Empty reports whether the plan carries no criteria and no region filters.
// An empty plan matches every page, including pages with no regions at all.
func (p *Plan) Empty() bool {
	return len(p.Criteria) == 0 && p.MinScore == 0 && p.MinAreaRatio == 0 && !p.NoText
}

// Values returns the accepted value set for one attribute, or nil.
func (p *Plan) Values(attribute string) []string {
	for _, c := range p.Criteria {
		if c.Attribute == attribute {
			return c.Values
		}
	}
	return nil
}

// Normalize renders the plan as a canonical string: criteria sorted by
// attribute, values sorted, thresholds at fixed precision. Two plans with
// the same meaning normalise identically, which keys the query cache.
func (p *Plan) Normalize() string {
	parts := []string{p.Collection}
	criteria := make([]Criterion, len(p.Criteria))
	copy(criteria, p.Criteria)
	sort.Slice(criteria, func(i, j int) bool {
		return criteria[i].Attribute < criteria[j].Attribute
	})
	for _, c := range criteria {
		values := append([]string(nil), c.Values...)
		sort.Strings(values)
		parts = append(parts, c.Attribute+"="+strings.Join(values, ","))
	}
	parts = append(parts,
		"score="+strconv.FormatFloat(p.MinScore, 'f', 2, 64),
		"area="+strconv.FormatFloat(p.MinAreaRatio, 'f', 2, 64),
	)
	if p.NoText {
		parts = append(parts, "no-text")
	}
	return strings.Join(parts, "|")
}

// Describe returns a short human-readable form used in logs and analytics.
func (p *Plan) Describe() string {
	if p.Empty() {
		return "all"
	}
	var parts []string
	if p.NoText {
		parts = append(parts, "no-text")
	}
	for _, c := range p.Criteria {
		parts = append(parts, fmt.Sprintf("%s:%s", c.Attribute, strings.Join(c.Values, ",")))
	}
	if p.MinScore > 0 {
		parts = append(parts, fmt.Sprintf("score>=%.2f", p.MinScore))
	}
	if p.MinAreaRatio > 0 {
		parts = append(parts, fmt.Sprintf("area>=%.2f", p.MinAreaRatio))
	}
	return strings.Join(parts, " ")
}
