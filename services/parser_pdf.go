package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"docchat-platform/internal/logger"
	"docchat-platform/models"
)

// PDFParser extracts page text and embedded image XObjects with their page
// placements. The pdf library panics on malformed input, so Parse runs
// under a recover guard.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Supports(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (p *PDFParser) Parse(data []byte, fileName string) (parsed *models.ParsedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			err = &models.ParseError{MimeType: "application/pdf", Reason: fmt.Sprintf("corrupt input: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &models.ParseError{MimeType: "application/pdf", Reason: "unreadable", Err: err}
	}

	var text strings.Builder
	var images []models.ParsedImage

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageStart := text.Len()

		pageText, err := page.GetPlainText(nil)
		if err == nil {
			text.WriteString(strings.TrimSpace(pageText))
			text.WriteString("\n\n")
		}

		pageImages := extractPageImages(page, pageNum, pageStart)
		images = append(images, pageImages...)
	}

	return &models.ParsedDocument{
		FullText: strings.TrimRight(text.String(), "\n"),
		Images:   images,
	}, nil
}

// imagePlacement is the position and drawn size of one XObject, taken from
// the last cm matrix preceding its Do operator.
type imagePlacement struct {
	x, y, w, h float64
}

func extractPageImages(page pdf.Page, pageNum, pageStart int) []models.ParsedImage {
	resources := page.V.Key("Resources")
	xobjects := resources.Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	placements := scanPlacements(pageContent(page))
	pageW, pageH := mediaBoxSize(page)

	var images []models.ParsedImage
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}

		img, ok := decodeImageXObject(obj)
		if !ok {
			continue
		}

		parsed := models.ParsedImage{
			Data:              img.data,
			MimeType:          "image/png",
			Width:             img.width,
			Height:            img.height,
			ApproximateOffset: pageStart,
			PageNumber:        pageNum,
			PageWidthPt:       pageW,
			PageHeightPt:      pageH,
			GroupID:           -1,
		}
		if pl, ok := placements[name]; ok {
			parsed.XPDF = pl.x
			parsed.YPDF = pl.y
			parsed.WidthPt = pl.w
			parsed.HeightPt = pl.h
		}
		images = append(images, parsed)
	}
	return images
}

func mediaBoxSize(page pdf.Page) (float64, float64) {
	box := page.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		// US Letter default.
		return 612, 792
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return 612, 792
	}
	return w, h
}

// pageContent concatenates the page's content streams.
func pageContent(page pdf.Page) []byte {
	contents := page.V.Key("Contents")
	var buf bytes.Buffer
	readStream := func(v pdf.Value) {
		defer func() { recover() }()
		if v.Kind() != pdf.Stream {
			return
		}
		rc := v.Reader()
		defer rc.Close()
		io.Copy(&buf, rc)
		buf.WriteByte('\n')
	}
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			readStream(contents.Index(i))
		}
	} else {
		readStream(contents)
	}
	return buf.Bytes()
}

// scanPlacements tokenizes a content stream and records, for each
// "/Name Do" invocation, the translation and scale of the last cm operator
// seen before it. This covers the common q-cm-Do-Q drawing pattern.
func scanPlacements(content []byte) map[string]imagePlacement {
	placements := make(map[string]imagePlacement)
	tokens := strings.Fields(string(content))

	var operands []float64
	var current imagePlacement
	var haveMatrix bool
	var lastName string

	for _, tok := range tokens {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			operands = append(operands, f)
			if len(operands) > 6 {
				operands = operands[len(operands)-6:]
			}
			continue
		}

		switch {
		case tok == "cm" && len(operands) >= 6:
			m := operands[len(operands)-6:]
			current = imagePlacement{x: m[4], y: m[5], w: abs(m[0]), h: abs(m[3])}
			haveMatrix = true
		case tok == "Do" && lastName != "" && haveMatrix:
			if _, seen := placements[lastName]; !seen {
				placements[lastName] = current
			}
		case strings.HasPrefix(tok, "/"):
			lastName = tok[1:]
		case tok == "Q":
			haveMatrix = false
		}
		operands = operands[:0]
	}
	return placements
}

type decodedImage struct {
	data   []byte
	width  int
	height int
}

// decodeImageXObject reconstructs a Flate-compressed image XObject and
// re-encodes it as PNG. DCT (JPEG) streams use a filter the pdf library
// cannot expose, so they are skipped.
func decodeImageXObject(obj pdf.Value) (decodedImage, bool) {
	filter := obj.Key("Filter")
	filterName := filter.Name()
	if filter.Kind() == pdf.Array && filter.Len() > 0 {
		filterName = filter.Index(filter.Len() - 1).Name()
	}
	if filterName != "FlateDecode" {
		logger.Debug("Skipping image XObject with unsupported filter", "filter", filterName)
		return decodedImage{}, false
	}

	width := int(obj.Key("Width").Int64())
	height := int(obj.Key("Height").Int64())
	bits := int(obj.Key("BitsPerComponent").Int64())
	if width <= 0 || height <= 0 || bits != 8 {
		return decodedImage{}, false
	}

	samples, ok := readStreamBytes(obj)
	if !ok {
		return decodedImage{}, false
	}

	colorSpace := obj.Key("ColorSpace").Name()
	var img image.Image
	switch {
	case colorSpace == "DeviceRGB" && len(samples) >= width*height*3:
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			rgba.SetRGBA(i%width, i/width, color.RGBA{samples[i*3], samples[i*3+1], samples[i*3+2], 255})
		}
		img = rgba
	case colorSpace == "DeviceGray" && len(samples) >= width*height:
		gray := image.NewGray(image.Rect(0, 0, width, height))
		copy(gray.Pix, samples[:width*height])
		img = gray
	default:
		return decodedImage{}, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return decodedImage{}, false
	}
	return decodedImage{data: buf.Bytes(), width: width, height: height}, true
}

func readStreamBytes(v pdf.Value) (data []byte, ok bool) {
	defer func() {
		if recover() != nil {
			data, ok = nil, false
		}
	}()
	rc := v.Reader()
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}
	return payload, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
