package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"docchat-platform/internal/config"
	"docchat-platform/models"
)

func testGrouper(threshold float64, minGroup int) *SpatialGrouper {
	return NewSpatialGrouper(&config.Config{SpatialThreshold: threshold, SpatialMinGroup: minGroup})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func placedImage(t *testing.T, page int, x, y float64) models.ParsedImage {
	t.Helper()
	return models.ParsedImage{
		Data:         pngBytes(t, 10, 10),
		MimeType:     "image/png",
		PageNumber:   page,
		XPDF:         x,
		YPDF:         y,
		WidthPt:      80,
		HeightPt:     80,
		PageWidthPt:  612,
		PageHeightPt: 792,
		GroupID:      -1,
	}
}

func TestRectGap(t *testing.T) {
	a := placedImage(t, 1, 0, 0)
	b := placedImage(t, 1, 40, 40) // overlapping
	if gap := rectGap(a, b); gap != 0 {
		t.Errorf("overlap gap = %v, want 0", gap)
	}

	c := placedImage(t, 1, 180, 0) // 100pt to the right of a's edge
	if gap := rectGap(a, c); gap != 100 {
		t.Errorf("horizontal gap = %v, want 100", gap)
	}
}

func TestGroupAndCompositeMergesClusters(t *testing.T) {
	// Five icons inside an 80x80 pt square on page 2.
	images := []models.ParsedImage{
		placedImage(t, 2, 100, 100),
		placedImage(t, 2, 120, 110),
		placedImage(t, 2, 140, 120),
		placedImage(t, 2, 110, 140),
		placedImage(t, 2, 130, 150),
	}

	out := testGrouper(100, 2).GroupAndComposite(images)
	if len(out) != 1 {
		t.Fatalf("got %d images, want 1 composite", len(out))
	}

	comp := out[0]
	if comp.GroupID < 0 {
		t.Error("composite not marked with group id")
	}
	if len(comp.GroupMembers) != 5 {
		t.Errorf("group members = %d, want 5", len(comp.GroupMembers))
	}
	if comp.MimeType != "image/png" {
		t.Errorf("composite mime = %q", comp.MimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(comp.Data))
	if err != nil {
		t.Fatalf("composite not decodable: %v", err)
	}
	if cfg.Width != comp.Width || cfg.Height != comp.Height {
		t.Errorf("recorded size %dx%d, decoded %dx%d", comp.Width, comp.Height, cfg.Width, cfg.Height)
	}
}

func TestGroupAndCompositeRespectsThreshold(t *testing.T) {
	images := []models.ParsedImage{
		placedImage(t, 1, 0, 0),
		placedImage(t, 1, 400, 400), // far away
	}
	out := testGrouper(100, 2).GroupAndComposite(images)
	if len(out) != 2 {
		t.Fatalf("distant images merged: got %d, want 2", len(out))
	}
	for _, img := range out {
		if img.GroupID != -1 {
			t.Errorf("singleton got group id %d", img.GroupID)
		}
	}
}

func TestGroupAndCompositePassesThroughUnplacedImages(t *testing.T) {
	images := []models.ParsedImage{
		{Data: pngBytes(t, 4, 4), MimeType: "image/png", GroupID: -1}, // no page placement
		placedImage(t, 1, 0, 0),
	}
	out := testGrouper(100, 2).GroupAndComposite(images)
	if len(out) != 2 {
		t.Fatalf("got %d images, want 2", len(out))
	}
}
