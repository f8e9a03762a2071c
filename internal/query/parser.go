package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

// ValidationError carries per-field failure details for a rejected query.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid query: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidQuery }

// Parse builds a Plan from HTTP query parameters. Multi-value attributes
// accept both repeated parameters and comma-separated lists. Parse checks
// syntax only; Validate checks the plan against a collection's vocabulary.
func Parse(collection string, params url.Values) (*Plan, error) {
	fields := make(map[string]string)
	plan := &Plan{Collection: collection}

	for param, attribute := range map[string]string{
		"implement":   catalogue.AttrImplement,
		"orientation": catalogue.AttrOrientation,
		"colour":      catalogue.AttrColour,
	} {
		values := splitParam(params[param])
		if len(values) == 0 {
			continue
		}
		plan.Criteria = append(plan.Criteria, Criterion{Attribute: attribute, Values: values})
	}
	sort.Slice(plan.Criteria, func(i, j int) bool {
		return plan.Criteria[i].Attribute < plan.Criteria[j].Attribute
	})

	if raw := params.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			fields["min_score"] = "not a number: " + raw
		case v < 0 || v > 1:
			fields["min_score"] = fmt.Sprintf("out of range [0,1]: %g", v)
		default:
			plan.MinScore = v
		}
	}
	if raw := params.Get("min_area"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			fields["min_area"] = "not a number: " + raw
		case v < 0 || v > 1:
			fields["min_area"] = fmt.Sprintf("out of range [0,1]: %g", v)
		default:
			plan.MinAreaRatio = v
		}
	}
	if raw := params.Get("no_text"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields["no_text"] = "not a boolean: " + raw
		} else {
			plan.NoText = v
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return plan, nil
}

// Validate checks a plan against a collection's attribute vocabulary.
// Unknown attributes and values not present in the vocabulary are rejected
// before any evaluation starts, so a failed query never produces partial
// results.
func Validate(plan *Plan, vocabulary map[string][]string) error {
	fields := make(map[string]string)
	seen := make(map[string]bool, len(plan.Criteria))
	for _, c := range plan.Criteria {
		if seen[c.Attribute] {
			fields[c.Attribute] = "attribute repeated"
			continue
		}
		seen[c.Attribute] = true
		vocab, ok := vocabulary[c.Attribute]
		if !ok {
			fields[c.Attribute] = "unknown attribute"
			continue
		}
		if len(c.Values) == 0 {
			fields[c.Attribute] = "no values given"
			continue
		}
		for _, v := range c.Values {
			if !contains(vocab, v) {
				fields[c.Attribute] = fmt.Sprintf("unknown value %q (known: %s)", v, strings.Join(vocab, ", "))
				break
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func splitParam(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" && !contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
