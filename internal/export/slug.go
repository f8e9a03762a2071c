// Package export materialises query results as date-stamped folders of
// image copies, with a manifest and an optional Postgres run ledger.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
)

// FolderName derives the export subdirectory name from the plan and the
// run date: the selected values in implement, orientation, colour order
// joined by underscores, the thresholds, and the day stamp,
// e.g. "pen_sideways_conf-0.80_size-0.30_12.03.2026".
func FolderName(plan *query.Plan, when time.Time) string {
	var parts []string
	if plan.NoText {
		parts = append(parts, "no-text")
	} else {
		for _, attr := range catalogue.Attributes() {
			if values := plan.Values(attr); len(values) > 0 {
				parts = append(parts, strings.Join(values, "-"))
			}
		}
	}
	parts = append(parts,
		fmt.Sprintf("conf-%.2f", plan.MinScore),
		fmt.Sprintf("size-%.2f", plan.MinAreaRatio),
	)
	parts = append(parts, when.Format("02.01.2006"))
	return sanitize(strings.Join(parts, "_"))
}

// sanitize keeps the folder name portable across filesystems.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, name)
}
