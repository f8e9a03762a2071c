package catalogue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

// catalogueFile mirrors the annotation model's JSON output: a COCO-style
// image list plus per-region annotations keyed by image ID.
type catalogueFile struct {
	Images      []imageEntry      `json:"images"`
	Annotations []annotationEntry `json:"annotations"`
}

type imageEntry struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type annotationEntry struct {
	ImageID      int64       `json:"image_id"`
	WritingTool  string      `json:"writing_tool"`
	Orientation  string      `json:"orientation"`
	ColorCode    string      `json:"color_code"`
	Score        float64     `json:"score"`
	Area         float64     `json:"area"`
	Segmentation [][]float64 `json:"segmentation"`
	// PagePosition marks a page-crop annotation: centre-x, centre-y,
	// relative width, relative height.
	PagePosition []float64 `json:"page_position"`
}

type cacheEntry struct {
	modTime   int64
	catalogue *Catalogue
}

// Loader parses catalogue files into Catalogues, resolving page image paths
// under imageRoot/<collection>/. Parsed catalogues are cached by file
// modification time so unchanged files are not reparsed on reload.
type Loader struct {
	imageRoot string
	mu        sync.Mutex
	cache     map[string]cacheEntry
	logger    *slog.Logger
}

// NewLoader creates a Loader resolving images below imageRoot.
func NewLoader(imageRoot string) *Loader {
	return &Loader{
		imageRoot: imageRoot,
		cache:     make(map[string]cacheEntry),
		logger:    slog.Default().With("component", "catalogue-loader"),
	}
}

// Load parses the catalogue file at path, reusing the cached parse when the
// file is unchanged. The collection name is the file's stem.
func (l *Loader) Load(path string) (*Catalogue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCatalogueLoad, 500, "stat %s: %v", path, err)
	}
	modTime := info.ModTime().UnixNano()

	l.mu.Lock()
	entry, ok := l.cache[path]
	l.mu.Unlock()
	if ok && entry.modTime == modTime {
		return entry.catalogue, nil
	}

	cat, err := l.parse(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[path] = cacheEntry{modTime: modTime, catalogue: cat}
	l.mu.Unlock()

	l.logger.Info("catalogue loaded",
		"collection", cat.Name(),
		"pages", cat.Len(),
		"path", path,
	)
	return cat, nil
}

// Evict drops the cached parse for path. Used when a collection disappears.
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	delete(l.cache, path)
	l.mu.Unlock()
}

func (l *Loader) parse(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCatalogueLoad, 500, "reading %s: %v", path, err)
	}
	var file catalogueFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCatalogueLoad, 500, "parsing %s: %v", path, err)
	}

	name := collectionName(path)
	imageDir := filepath.Join(l.imageRoot, name)

	regionsByImage := make(map[int64][]Region, len(file.Images))
	for _, ann := range file.Annotations {
		regionsByImage[ann.ImageID] = append(regionsByImage[ann.ImageID], toRegion(ann))
	}

	seenIDs := make(map[int64]bool, len(file.Images))
	records := make([]*PageRecord, 0, len(file.Images))
	for _, img := range file.Images {
		if seenIDs[img.ID] {
			return nil, apperrors.Newf(apperrors.ErrCatalogueLoad, 500, "%s: duplicate image id %d", path, img.ID)
		}
		seenIDs[img.ID] = true
		rec := &PageRecord{
			ID:        fmt.Sprintf("%s/%d", name, img.ID),
			ImageID:   img.ID,
			FileName:  img.FileName,
			ImagePath: resolveImagePath(imageDir, img.FileName),
			Width:     img.Width,
			Height:    img.Height,
			Ordinal:   len(records),
			Regions:   regionsByImage[img.ID],
		}
		records = append(records, rec)
	}

	return newCatalogue(name, records), nil
}

func toRegion(ann annotationEntry) Region {
	r := Region{
		Implement:   strings.ToLower(strings.TrimSpace(ann.WritingTool)),
		Orientation: strings.ToLower(strings.TrimSpace(ann.Orientation)),
		ColourCode:  ann.ColorCode,
		Score:       ann.Score,
		Area:        ann.Area,
	}
	if r.ColourCode == "" {
		r.ColourCode = "0-0-0"
	}
	r.Colour = ColourLabel(r.ColourCode)
	if len(ann.PagePosition) == 4 {
		r.PageCrop = true
		copy(r.Crop[:], ann.PagePosition)
	}
	for _, seg := range ann.Segmentation {
		poly := make([]Point, 0, len(seg)/2)
		for i := 0; i+1 < len(seg); i += 2 {
			poly = append(poly, Point{X: seg[i], Y: seg[i+1]})
		}
		if len(poly) > 0 {
			r.Polygons = append(r.Polygons, poly)
		}
	}
	return r
}

// collectionName returns the catalogue file's stem.
func collectionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// resolveImagePath looks for the page image next to the catalogue stem,
// trying .jpg then .png. Returns "" when no image file exists.
func resolveImagePath(imageDir, fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	for _, ext := range []string{".jpg", ".png"} {
		p := filepath.Join(imageDir, stem+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
