package services

import (
	"sort"
	"strings"

	"docchat-platform/internal/config"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// ChunkDraft is the chunker's intermediate output, mutated by enrichment
// before being persisted as a Chunk.
type ChunkDraft struct {
	Content        string
	ContextPrefix  string
	SectionTitle   string
	Breadcrumb     []string
	DocumentOffset int
	ImageIndices   []int
	TokenCount     int
	Keywords       []string
}

// Chunker slices parsed documents into overlapping windows, preferring
// paragraph over sentence over word boundaries.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(cfg *config.Config) *Chunker {
	return &Chunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
}

// Chunk produces the ordered chunk list for a parsed document. Sections
// drive the windows when any has content; otherwise the full text is
// chunked with an empty breadcrumb. Empty input yields an empty list.
func (c *Chunker) Chunk(doc *models.ParsedDocument) []ChunkDraft {
	var drafts []ChunkDraft

	hasSections := false
	for _, s := range doc.Sections {
		if strings.TrimSpace(s.Content) != "" {
			hasSections = true
			break
		}
	}

	if hasSections {
		for _, section := range doc.Sections {
			if strings.TrimSpace(section.Content) == "" {
				continue
			}
			for _, w := range c.window(section.Content, section.StartOffset) {
				drafts = append(drafts, ChunkDraft{
					Content:        w.text,
					SectionTitle:   section.Title,
					Breadcrumb:     section.Breadcrumb,
					DocumentOffset: w.offset,
				})
			}
		}
	} else if strings.TrimSpace(doc.FullText) != "" {
		for _, w := range c.window(doc.FullText, 0) {
			drafts = append(drafts, ChunkDraft{
				Content:        w.text,
				DocumentOffset: w.offset,
			})
		}
	}

	for i := range drafts {
		drafts[i].TokenCount = utils.EstimateTokens(drafts[i].Content)
		drafts[i].Keywords = extractKeywords(drafts[i].Content, 8)
	}

	c.associateImages(drafts, doc.Images)
	return drafts
}

type window struct {
	text   string
	offset int
}

func (c *Chunker) window(text string, baseOffset int) []window {
	var out []window
	pos := 0
	for pos < len(text) {
		end := pos + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, pos, end)
		}

		piece := text[pos:end]
		trimmed := strings.TrimSpace(piece)
		if trimmed != "" {
			lead := strings.Index(piece, trimmed[:1])
			out = append(out, window{text: trimmed, offset: baseOffset + pos + lead})
		}

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return out
}

// breakPoint moves the window end back to the best boundary in the second
// half of the window: paragraph, then sentence, then word.
func breakPoint(text string, start, end int) int {
	floor := start + (end-start)/2

	if i := strings.LastIndex(text[floor:end], "\n\n"); i >= 0 {
		return floor + i + 2
	}
	for _, mark := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(text[floor:end], mark); i >= 0 {
			return floor + i + len(mark)
		}
	}
	if i := strings.LastIndex(text[floor:end], " "); i >= 0 {
		return floor + i + 1
	}
	return end
}

// associateImages attaches each image index to the chunk whose window is
// nearest the image's text offset. Composites already stand in for their
// group members, so every image here contributes at most one id.
func (c *Chunker) associateImages(drafts []ChunkDraft, images []models.ParsedImage) {
	if len(drafts) == 0 {
		return
	}
	for i, img := range images {
		best := 0
		bestDist := -1
		for j, d := range drafts {
			dist := 0
			switch {
			case img.ApproximateOffset < d.DocumentOffset:
				dist = d.DocumentOffset - img.ApproximateOffset
			case img.ApproximateOffset >= d.DocumentOffset+c.size:
				dist = img.ApproximateOffset - (d.DocumentOffset + c.size) + 1
			}
			if bestDist < 0 || dist < bestDist {
				best, bestDist = j, dist
			}
		}
		drafts[best].ImageIndices = append(drafts[best].ImageIndices, i)
	}
}

// extractKeywords returns the most frequent non-stopword terms of a chunk.
func extractKeywords(text string, limit int) []string {
	freq := make(map[string]int)
	for _, term := range Tokenize(text) {
		if len(term) < 3 || stopwords[term] {
			continue
		}
		freq[term]++
	}
	if len(freq) == 0 {
		return nil
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "which": true, "when": true, "were": true,
	"been": true, "more": true, "also": true, "into": true, "than": true,
	"its": true, "such": true, "these": true, "those": true, "each": true,
}
