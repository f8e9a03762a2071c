// Package preview assembles a render-ready view of one catalogue page:
// the image location, the page crop, and per-region overlay geometry.
package preview

import (
	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
)

// Overlay is one text region prepared for drawing on top of the page image.
type Overlay struct {
	Label    string              `json:"label"`
	Score    float64             `json:"score"`
	Area     float64             `json:"area"`
	Polygons [][]catalogue.Point `json:"polygons,omitempty"`
}

// PageView is the full detail view of a single page.
type PageView struct {
	PageID      string    `json:"page_id"`
	Collection  string    `json:"collection"`
	FileName    string    `json:"file_name"`
	ImagePath   string    `json:"image_path,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Crop        []float64 `json:"crop,omitempty"`
	Overlays    []Overlay `json:"overlays"`
	RegionCount int       `json:"region_count"`
}

// Build produces the view for one page record. The crop comes from the
// page-position region when the annotator emitted one; overlays cover the
// text regions only.
func Build(collection string, rec *catalogue.PageRecord) PageView {
	view := PageView{
		PageID:     rec.ID,
		Collection: collection,
		FileName:   rec.FileName,
		ImagePath:  rec.ImagePath,
		Width:      rec.Width,
		Height:     rec.Height,
		Overlays:   []Overlay{},
	}
	if crop := rec.PageCrop(); crop != nil {
		view.Crop = crop.Crop[:]
	}
	text := rec.TextRegions()
	view.RegionCount = len(text)
	for _, r := range text {
		view.Overlays = append(view.Overlays, Overlay{
			Label:    overlayLabel(r),
			Score:    r.Score,
			Area:     r.Area,
			Polygons: r.Polygons,
		})
	}
	return view
}

func overlayLabel(r catalogue.Region) string {
	label := r.Implement
	if r.Orientation != "" {
		label += " / " + r.Orientation
	}
	if r.Colour != "" {
		label += " / " + r.Colour
	}
	return label
}
