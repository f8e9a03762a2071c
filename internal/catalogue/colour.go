package catalogue

import (
	"fmt"
	"strconv"
	"strings"
)

// Colour classification of the annotation model's "r-g-b" codes into a fixed
// label vocabulary. Quick-exit rules catch the common achromatic and primary
// cases; everything else falls back to nearest-centre distance, and shade
// labels are folded into their super-group so the filter list stays short.

type colourCentre struct {
	label   string
	r, g, b int
}

var colourCentres = []colourCentre{
	{"black", 10, 10, 10},
	{"grey", 150, 150, 150},
	{"blue", 60, 60, 190},
	{"red", 200, 20, 0},
	{"white", 255, 255, 255},
	{"green", 0, 255, 0},
}

// colourGroups folds fine-grained labels into the coarse groups used for
// filtering. Labels without a group pass through unchanged.
var colourGroups = map[string][]string{
	"blue":  {"blue"},
	"red":   {"red"},
	"black": {"black"},
}

var colourParent = func() map[string]string {
	parent := make(map[string]string)
	for group, members := range colourGroups {
		for _, m := range members {
			parent[m] = group
		}
	}
	return parent
}()

// ColourVocabulary returns the folded master list of colour labels in
// canonical order. Queries validate colour values against this list rather
// than the observed catalogue values.
func ColourVocabulary() []string {
	seen := make(map[string]bool, len(colourCentres))
	out := make([]string, 0, len(colourCentres))
	for _, c := range colourCentres {
		label := c.label
		if p, ok := colourParent[label]; ok {
			label = p
		}
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

// ParseColourCode parses an "r-g-b" code into its components.
func ParseColourCode(code string) (r, g, b int, err error) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("colour code %q: want r-g-b", code)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("colour code %q: %w", code, convErr)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// ColourLabel classifies an "r-g-b" code into the label vocabulary.
// Malformed codes classify as "black", matching the annotation model's
// 0-0-0 default for missing codes.
func ColourLabel(code string) string {
	r, g, b, err := ParseColourCode(code)
	if err != nil {
		return "black"
	}

	// Quick-exit rules, in order.
	if max3(r, g, b) < 60 {
		return fold("black")
	}
	if min3(r, g, b) > 220 {
		return fold("white")
	}
	if max3(r, g, b)-min3(r, g, b) < 20 {
		return fold("grey")
	}
	if r > g+30 && r > b+30 {
		return fold("red")
	}
	if g > r+50 && g > b+50 {
		return fold("green")
	}
	if b > r+30 && b > g+30 {
		return fold("blue")
	}

	// Distance fallback.
	nearest := colourCentres[0].label
	best := -1
	for _, c := range colourCentres {
		d := sq(r-c.r) + sq(g-c.g) + sq(b-c.b)
		if best < 0 || d < best {
			best = d
			nearest = c.label
		}
	}
	return fold(nearest)
}

func fold(label string) string {
	if p, ok := colourParent[label]; ok {
		return p
	}
	return label
}

func sq(v int) int { return v * v }

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
