package services

import (
	"strings"
	"testing"

	"docchat-platform/internal/config"
	"docchat-platform/models"
)

func testChunker(size, overlap int) *Chunker {
	return NewChunker(&config.Config{ChunkSize: size, ChunkOverlap: overlap})
}

func TestChunkEmptyDocument(t *testing.T) {
	c := testChunker(400, 50)
	drafts := c.Chunk(&models.ParsedDocument{FullText: ""})
	if len(drafts) != 0 {
		t.Fatalf("empty document produced %d chunks", len(drafts))
	}
	drafts = c.Chunk(&models.ParsedDocument{FullText: "   \n  "})
	if len(drafts) != 0 {
		t.Fatalf("whitespace document produced %d chunks", len(drafts))
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := testChunker(400, 50)
	drafts := c.Chunk(&models.ParsedDocument{FullText: "Paris is the capital of France."})
	if len(drafts) != 1 {
		t.Fatalf("got %d chunks, want 1", len(drafts))
	}
	if drafts[0].Content != "Paris is the capital of France." {
		t.Errorf("content = %q", drafts[0].Content)
	}
	if drafts[0].TokenCount == 0 {
		t.Error("token count not set")
	}
}

func TestChunkOffsetsAreOrdered(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is sentence number one of the long test document. ")
	}
	c := testChunker(200, 40)
	drafts := c.Chunk(&models.ParsedDocument{FullText: sb.String()})
	if len(drafts) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(drafts))
	}
	for i := 1; i < len(drafts); i++ {
		if drafts[i].DocumentOffset < drafts[i-1].DocumentOffset {
			t.Errorf("offset[%d]=%d < offset[%d]=%d", i, drafts[i].DocumentOffset, i-1, drafts[i-1].DocumentOffset)
		}
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta. ", 60)
	doc := &models.ParsedDocument{FullText: text}
	c := testChunker(300, 50)

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content || first[i].DocumentOffset != second[i].DocumentOffset {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkSectionsCarryBreadcrumb(t *testing.T) {
	doc := &models.ParsedDocument{
		FullText: "Intro\n\nBody text here.",
		Sections: []models.ParsedSection{
			{Title: "Overview", Breadcrumb: []string{"Overview"}, Level: 1, Content: "Body text here.", StartOffset: 7},
		},
	}
	drafts := testChunker(400, 50).Chunk(doc)
	if len(drafts) != 1 {
		t.Fatalf("got %d chunks, want 1", len(drafts))
	}
	if drafts[0].SectionTitle != "Overview" {
		t.Errorf("section title = %q", drafts[0].SectionTitle)
	}
	if len(drafts[0].Breadcrumb) != 1 || drafts[0].Breadcrumb[0] != "Overview" {
		t.Errorf("breadcrumb = %v", drafts[0].Breadcrumb)
	}
	if drafts[0].DocumentOffset != 7 {
		t.Errorf("offset = %d, want 7", drafts[0].DocumentOffset)
	}
}

func TestChunkEmptySectionsFallBackToFullText(t *testing.T) {
	doc := &models.ParsedDocument{
		FullText: "Only the full text has content.",
		Sections: []models.ParsedSection{{Title: "Empty", Content: "   "}},
	}
	drafts := testChunker(400, 50).Chunk(doc)
	if len(drafts) != 1 {
		t.Fatalf("got %d chunks, want 1", len(drafts))
	}
	if len(drafts[0].Breadcrumb) != 0 {
		t.Errorf("fallback chunk carries breadcrumb %v", drafts[0].Breadcrumb)
	}
}

func TestChunkPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence ends here. Second sentence is also present and keeps going for a while longer."
	drafts := testChunker(40, 5).Chunk(&models.ParsedDocument{FullText: text})
	if len(drafts) < 2 {
		t.Fatalf("got %d chunks", len(drafts))
	}
	if !strings.HasSuffix(drafts[0].Content, "here.") {
		t.Errorf("first chunk did not break on sentence: %q", drafts[0].Content)
	}
}

func TestImageAssociationNearestChunk(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet consectetur. ", 30)
	doc := &models.ParsedDocument{
		FullText: text,
		Images: []models.ParsedImage{
			{ApproximateOffset: 0, GroupID: -1},
			{ApproximateOffset: len(text) - 1, GroupID: -1},
		},
	}
	drafts := testChunker(200, 40).Chunk(doc)
	if len(drafts) < 2 {
		t.Fatalf("need multiple chunks, got %d", len(drafts))
	}

	if len(drafts[0].ImageIndices) != 1 || drafts[0].ImageIndices[0] != 0 {
		t.Errorf("first chunk images = %v, want [0]", drafts[0].ImageIndices)
	}
	last := drafts[len(drafts)-1]
	if len(last.ImageIndices) != 1 || last.ImageIndices[0] != 1 {
		t.Errorf("last chunk images = %v, want [1]", last.ImageIndices)
	}

	total := 0
	for _, d := range drafts {
		total += len(d.ImageIndices)
	}
	if total != 2 {
		t.Errorf("images attached %d times, want 2", total)
	}
}

func TestExtractKeywordsSkipsStopwords(t *testing.T) {
	kws := extractKeywords("the quantum computer uses quantum gates and the quantum processor", 5)
	if len(kws) == 0 {
		t.Fatal("no keywords")
	}
	if kws[0] != "quantum" {
		t.Errorf("top keyword = %q, want quantum", kws[0])
	}
	for _, kw := range kws {
		if stopwords[kw] {
			t.Errorf("stopword %q in keywords", kw)
		}
	}
}
