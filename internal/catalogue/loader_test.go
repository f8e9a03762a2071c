package catalogue

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
)

const testCatalogueJSON = `{
	"images": [
		{"id": 1, "file_name": "page-001.tif", "width": 2000, "height": 3000},
		{"id": 2, "file_name": "page-002.tif", "width": 2000, "height": 3000},
		{"id": 3, "file_name": "page-003.tif", "width": 2000, "height": 3000}
	],
	"annotations": [
		{"image_id": 1, "writing_tool": "Pen", "orientation": "straight", "color_code": "10-10-10", "score": 0.92, "area": 1200, "segmentation": [[0, 0, 10, 0, 10, 10]]},
		{"image_id": 1, "page_position": [0.5, 0.5, 0.9, 0.95], "score": 0.99},
		{"image_id": 2, "writing_tool": "pencil", "orientation": "sideways", "color_code": "60-60-190", "score": 0.40, "area": 300}
	]
}`

func writeCatalogue(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing catalogue fixture: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	path := writeCatalogue(t, dir, "herbar.json", testCatalogueJSON)

	// One image on disk, as .png only.
	if err := os.MkdirAll(filepath.Join(imageDir, "herbar"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imageDir, "herbar", "page-001.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(imageDir)
	cat, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cat.Name() != "herbar" {
		t.Errorf("Name = %q, want herbar", cat.Name())
	}
	if cat.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cat.Len())
	}

	rec, err := cat.Get("herbar/1")
	if err != nil {
		t.Fatalf("Get herbar/1: %v", err)
	}
	if rec.Ordinal != 0 {
		t.Errorf("Ordinal = %d, want 0", rec.Ordinal)
	}
	if rec.ImagePath == "" {
		t.Error("expected resolved .png image path for page-001")
	}
	if len(rec.Regions) != 2 {
		t.Fatalf("regions = %d, want 2 (text + page crop)", len(rec.Regions))
	}
	text := rec.TextRegions()
	if len(text) != 1 {
		t.Fatalf("text regions = %d, want 1", len(text))
	}
	if text[0].Implement != "pen" {
		t.Errorf("implement = %q, want lower-cased pen", text[0].Implement)
	}
	if text[0].Colour != "black" {
		t.Errorf("colour = %q, want black", text[0].Colour)
	}
	if len(text[0].Polygons) != 1 || len(text[0].Polygons[0]) != 3 {
		t.Errorf("unexpected polygon shape: %+v", text[0].Polygons)
	}
	crop := rec.PageCrop()
	if crop == nil {
		t.Fatal("expected page crop region")
	}
	if crop.Crop != [4]float64{0.5, 0.5, 0.9, 0.95} {
		t.Errorf("crop = %v", crop.Crop)
	}

	// Page 3 has no annotations and no image file.
	rec3, err := cat.Get("herbar/3")
	if err != nil {
		t.Fatalf("Get herbar/3: %v", err)
	}
	if len(rec3.Regions) != 0 {
		t.Errorf("page 3 regions = %d, want 0", len(rec3.Regions))
	}
	if rec3.ImagePath != "" {
		t.Errorf("page 3 image path = %q, want empty", rec3.ImagePath)
	}
}

func TestLoaderVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalogue(t, dir, "herbar.json", testCatalogueJSON)

	cat, err := NewLoader(dir).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	vocab := cat.Vocabulary()

	if got := vocab[AttrImplement]; len(got) != 2 || got[0] != "pen" || got[1] != "pencil" {
		t.Errorf("implement vocab = %v, want [pen pencil]", got)
	}
	if got := vocab[AttrOrientation]; len(got) != 2 || got[0] != "sideways" || got[1] != "straight" {
		t.Errorf("orientation vocab = %v, want [sideways straight]", got)
	}
	// Colour vocabulary is the full label list, not just observed values.
	if got := vocab[AttrColour]; len(got) != 6 {
		t.Errorf("colour vocab = %v, want all six labels", got)
	}
}

func TestLoaderCacheByModTime(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalogue(t, dir, "herbar.json", testCatalogueJSON)
	loader := NewLoader(dir)

	first, err := loader.Load(path)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := loader.Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Error("unchanged file should return the cached catalogue")
	}

	// Rewrite with a future mtime to force a reparse.
	if err := os.WriteFile(path, []byte(testCatalogueJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	third, err := loader.Load(path)
	if err != nil {
		t.Fatalf("third Load: %v", err)
	}
	if first == third {
		t.Error("changed mtime should trigger a reparse")
	}
}

func TestLoaderDuplicateImageID(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalogue(t, dir, "dup.json", `{
		"images": [
			{"id": 7, "file_name": "a.tif"},
			{"id": 7, "file_name": "b.tif"}
		],
		"annotations": []
	}`)

	_, err := NewLoader(dir).Load(path)
	if err == nil {
		t.Fatal("expected error for duplicate image id")
	}
	if !errors.Is(err, apperrors.ErrCatalogueLoad) {
		t.Errorf("error = %v, want ErrCatalogueLoad", err)
	}
}

func TestLoaderMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalogue(t, dir, "bad.json", `{"images": [`)

	_, err := NewLoader(dir).Load(path)
	if !errors.Is(err, apperrors.ErrCatalogueLoad) {
		t.Errorf("error = %v, want ErrCatalogueLoad", err)
	}
}

func TestCatalogueGetUnknownPage(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalogue(t, dir, "herbar.json", testCatalogueJSON)

	cat, err := NewLoader(dir).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cat.Get("herbar/999"); !errors.Is(err, apperrors.ErrPageNotFound) {
		t.Errorf("error = %v, want ErrPageNotFound", err)
	}
}
