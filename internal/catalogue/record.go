// Package catalogue models and loads computational visual catalogues: one
// JSON file per document collection, with one record per page image and one
// region per detected piece of writing.
package catalogue

// Attribute names understood by the query engine. They correspond to the
// per-region fields produced by the annotation model.
const (
	AttrImplement   = "implement"
	AttrOrientation = "orientation"
	AttrColour      = "colour"
)

// Attributes lists the filterable categorical attributes in canonical order.
func Attributes() []string {
	return []string{AttrImplement, AttrOrientation, AttrColour}
}

// Point is a polygon vertex in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is one detected text region on a page. PageCrop regions describe
// the physical page boundary inside the scan rather than writing; they are
// excluded from attribute filtering but kept for preview geometry.
type Region struct {
	Implement   string    `json:"implement,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
	ColourCode  string    `json:"colour_code,omitempty"`
	Colour      string    `json:"colour,omitempty"`
	Score       float64   `json:"score"`
	Area        float64   `json:"area"`
	Polygons    [][]Point `json:"polygons,omitempty"`
	PageCrop    bool      `json:"page_crop,omitempty"`
	// Crop holds centre-x, centre-y, relative width, relative height for
	// PageCrop regions.
	Crop [4]float64 `json:"crop,omitempty"`
}

// PageRecord is one catalogue entry describing one document-page image.
type PageRecord struct {
	// ID is unique within a collection: "<collection>/<image-id>".
	ID       string `json:"id"`
	ImageID  int64  `json:"image_id"`
	FileName string `json:"file_name"`
	// ImagePath is the resolved on-disk image location, or "" when no image
	// file was found next to the catalogue.
	ImagePath string `json:"image_path,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	// Ordinal is the record's position in catalogue order.
	Ordinal int      `json:"ordinal"`
	Regions []Region `json:"regions,omitempty"`
}

// TextRegions returns the record's regions excluding page-crop entries.
func (p *PageRecord) TextRegions() []Region {
	out := make([]Region, 0, len(p.Regions))
	for _, r := range p.Regions {
		if !r.PageCrop {
			out = append(out, r)
		}
	}
	return out
}

// PageCrop returns the first page-crop region, or nil.
func (p *PageRecord) PageCrop() *Region {
	for i := range p.Regions {
		if p.Regions[i].PageCrop {
			return &p.Regions[i]
		}
	}
	return nil
}

// Value returns the record-level value of a categorical attribute for a
// region, already lower-cased at load time.
func (r *Region) Value(attribute string) string {
	switch attribute {
	case AttrImplement:
		return r.Implement
	case AttrOrientation:
		return r.Orientation
	case AttrColour:
		return r.Colour
	default:
		return ""
	}
}
