package services

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/models"
)

// compositeScale converts PDF points to raster pixels (150 DPI).
const compositeScale = 150.0 / 72.0

// compositePadding is the fraction of the group bounding box added on each
// side before clamping to the page.
const compositePadding = 0.05

// SpatialGrouper merges PDF images that sit close together on a page into
// one composite, so a figure exported as many small fragments is stored
// and cited as a single image.
type SpatialGrouper struct {
	threshold float64
	minGroup  int
}

func NewSpatialGrouper(cfg *config.Config) *SpatialGrouper {
	return &SpatialGrouper{
		threshold: cfg.SpatialThreshold,
		minGroup:  cfg.SpatialMinGroup,
	}
}

// GroupAndComposite returns the image list with each qualifying spatial
// group replaced by its rendered composite. Images without page placement
// pass through untouched, as does any group whose composite fails to
// render.
func (g *SpatialGrouper) GroupAndComposite(images []models.ParsedImage) []models.ParsedImage {
	byPage := make(map[int][]int)
	var passthrough []int
	for i, img := range images {
		if img.PageNumber > 0 && img.WidthPt > 0 && img.HeightPt > 0 {
			byPage[img.PageNumber] = append(byPage[img.PageNumber], i)
		} else {
			passthrough = append(passthrough, i)
		}
	}

	var out []models.ParsedImage
	for _, i := range passthrough {
		out = append(out, images[i])
	}

	groupID := 0
	for _, idxs := range byPage {
		uf := newUnionFind(len(idxs))
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				if rectGap(images[idxs[a]], images[idxs[b]]) <= g.threshold {
					uf.union(a, b)
				}
			}
		}

		groups := make(map[int][]int)
		for local, idx := range idxs {
			groups[uf.find(local)] = append(groups[uf.find(local)], idx)
		}

		for _, members := range groups {
			if len(members) < g.minGroup {
				for _, idx := range members {
					out = append(out, images[idx])
				}
				continue
			}

			composite, ok := renderComposite(images, members, groupID)
			if !ok {
				logger.Warn("Composite rendering failed, keeping member images", "members", len(members))
				for _, idx := range members {
					out = append(out, images[idx])
				}
				continue
			}
			out = append(out, composite)
			groupID++
		}
	}
	return out
}

// rectGap is the shortest distance between two placed rectangles, zero
// when they overlap.
func rectGap(a, b models.ParsedImage) float64 {
	dx := math.Max(0, math.Max(b.XPDF-(a.XPDF+a.WidthPt), a.XPDF-(b.XPDF+b.WidthPt)))
	dy := math.Max(0, math.Max(b.YPDF-(a.YPDF+a.HeightPt), a.YPDF-(b.YPDF+b.HeightPt)))
	return math.Hypot(dx, dy)
}

func renderComposite(images []models.ParsedImage, members []int, groupID int) (models.ParsedImage, bool) {
	first := images[members[0]]

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	earliest := first.ApproximateOffset
	for _, idx := range members {
		img := images[idx]
		minX = math.Min(minX, img.XPDF)
		minY = math.Min(minY, img.YPDF)
		maxX = math.Max(maxX, img.XPDF+img.WidthPt)
		maxY = math.Max(maxY, img.YPDF+img.HeightPt)
		if img.ApproximateOffset < earliest {
			earliest = img.ApproximateOffset
		}
	}

	padX := (maxX - minX) * compositePadding
	padY := (maxY - minY) * compositePadding
	minX = math.Max(0, minX-padX)
	minY = math.Max(0, minY-padY)
	if first.PageWidthPt > 0 {
		maxX = math.Min(first.PageWidthPt, maxX+padX)
	} else {
		maxX += padX
	}
	if first.PageHeightPt > 0 {
		maxY = math.Min(first.PageHeightPt, maxY+padY)
	} else {
		maxY += padY
	}

	canvasW := int(math.Ceil((maxX - minX) * compositeScale))
	canvasH := int(math.Ceil((maxY - minY) * compositeScale))
	if canvasW <= 0 || canvasH <= 0 || canvasW > 8192 || canvasH > 8192 {
		return models.ParsedImage{}, false
	}

	dc := gg.NewContext(canvasW, canvasH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	drawn := 0
	for _, idx := range members {
		member := images[idx]
		src, _, err := image.Decode(bytes.NewReader(member.Data))
		if err != nil {
			continue
		}

		w := int(math.Round(member.WidthPt * compositeScale))
		h := int(math.Round(member.HeightPt * compositeScale))
		if w <= 0 || h <= 0 {
			continue
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Over, nil)

		// PDF coordinates grow upward; the canvas grows downward.
		x := int(math.Round((member.XPDF - minX) * compositeScale))
		y := int(math.Round((maxY - (member.YPDF + member.HeightPt)) * compositeScale))
		dc.DrawImage(scaled, x, y)
		drawn++
	}
	if drawn == 0 {
		return models.ParsedImage{}, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return models.ParsedImage{}, false
	}

	return models.ParsedImage{
		Data:              buf.Bytes(),
		MimeType:          "image/png",
		Width:             canvasW,
		Height:            canvasH,
		ApproximateOffset: earliest,
		PageNumber:        first.PageNumber,
		XPDF:              minX,
		YPDF:              minY,
		WidthPt:           maxX - minX,
		HeightPt:          maxY - minY,
		PageWidthPt:       first.PageWidthPt,
		PageHeightPt:      first.PageHeightPt,
		GroupID:           groupID,
		GroupMembers:      append([]int(nil), members...),
	}, true
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	u.parent[u.find(a)] = u.find(b)
}
