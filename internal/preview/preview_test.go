package preview

import (
	"testing"

	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
)

func TestBuild(t *testing.T) {
	rec := &catalogue.PageRecord{
		ID:        "herbar/1",
		ImageID:   1,
		FileName:  "p1.tif",
		ImagePath: "/images/herbar/p1.jpg",
		Width:     2000,
		Height:    3000,
		Regions: []catalogue.Region{
			{
				Implement:   "pen",
				Orientation: "straight",
				Colour:      "black",
				Score:       0.9,
				Area:        100,
				Polygons:    [][]catalogue.Point{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}},
			},
			{PageCrop: true, Crop: [4]float64{0.5, 0.5, 0.9, 0.95}, Score: 0.99},
		},
	}

	view := Build("herbar", rec)

	if view.PageID != "herbar/1" || view.Collection != "herbar" {
		t.Errorf("identity = %q/%q", view.PageID, view.Collection)
	}
	if view.RegionCount != 1 {
		t.Errorf("RegionCount = %d, want 1 (crop excluded)", view.RegionCount)
	}
	if len(view.Crop) != 4 || view.Crop[3] != 0.95 {
		t.Errorf("Crop = %v", view.Crop)
	}
	if len(view.Overlays) != 1 {
		t.Fatalf("Overlays = %v", view.Overlays)
	}
	overlay := view.Overlays[0]
	if overlay.Label != "pen / straight / black" {
		t.Errorf("Label = %q", overlay.Label)
	}
	if len(overlay.Polygons) != 1 {
		t.Errorf("Polygons = %v", overlay.Polygons)
	}
}

func TestBuildWithoutCrop(t *testing.T) {
	rec := &catalogue.PageRecord{ID: "herbar/2", FileName: "p2.tif"}
	view := Build("herbar", rec)

	if view.Crop != nil {
		t.Errorf("Crop = %v, want nil", view.Crop)
	}
	if view.RegionCount != 0 || len(view.Overlays) != 0 {
		t.Errorf("view = %+v, want empty overlays", view)
	}
}
