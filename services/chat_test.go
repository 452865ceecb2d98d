package services

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/ai"
	"docchat-platform/models"
)

func TestOrderedDocumentIDsKeepsFirstOccurrence(t *testing.T) {
	docA := primitive.NewObjectID()
	docB := primitive.NewObjectID()
	hits := []ScoredChunk{
		{Chunk: models.Chunk{DocumentID: docA}},
		{Chunk: models.Chunk{DocumentID: docB}},
		{Chunk: models.Chunk{DocumentID: docA}},
	}

	ids := orderedDocumentIDs(hits)
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	if ids[0] != docA || ids[1] != docB {
		t.Errorf("order = %v, want [%v %v]", ids, docA, docB)
	}
}

func TestBuildDocumentContextHeaders(t *testing.T) {
	hits := []ScoredChunk{
		{Chunk: models.Chunk{FileName: "handbook.pdf", DocumentTitle: "Employee Handbook", SectionTitle: "Leave Policy", Content: "Leave accrues monthly."}},
		{Chunk: models.Chunk{FileName: "notes.md", DocumentTitle: "Notes", Content: "Untitled section content."}},
	}

	got := buildDocumentContext(hits)
	if !strings.HasPrefix(got, "=== DOCUMENT CONTEXT ===\n") {
		t.Errorf("missing context banner:\n%s", got)
	}
	if !strings.Contains(got, "[Source 1: handbook.pdf — Employee Handbook > Section: Leave Policy]") {
		t.Errorf("first header wrong:\n%s", got)
	}
	// No section title, no section suffix.
	if !strings.Contains(got, "[Source 2: notes.md — Notes]") {
		t.Errorf("second header wrong:\n%s", got)
	}
	if !strings.Contains(got, "Leave accrues monthly.") {
		t.Error("chunk content missing")
	}

	if buildDocumentContext(nil) != "" {
		t.Error("empty hits rendered a context block")
	}
}

func TestCitationForTruncatesExcerpt(t *testing.T) {
	imageID := primitive.NewObjectID()
	hit := ScoredChunk{Chunk: models.Chunk{
		DocumentID:        primitive.NewObjectID(),
		FileName:          "long.pdf",
		ChunkIndex:        7,
		Content:           strings.Repeat("a", 500),
		SectionBreadcrumb: []string{"Intro", "Details"},
		AssociatedImages:  []primitive.ObjectID{imageID},
	}}

	c := citationFor(hit)
	if len(c.Text) > citationExcerpt {
		t.Errorf("excerpt length = %d, want <= %d", len(c.Text), citationExcerpt)
	}
	if c.Page == nil || *c.Page != 7 {
		t.Errorf("page = %v, want 7", c.Page)
	}
	if c.Source != "long.pdf" || len(c.SectionBreadcrumb) != 2 {
		t.Errorf("source/breadcrumb = %q / %v", c.Source, c.SectionBreadcrumb)
	}
	if len(c.ImageIDs) != 1 || c.ImageIDs[0] != imageID.Hex() {
		t.Errorf("image ids = %v", c.ImageIDs)
	}
}

func promptFixture() ([]models.Summary, []models.ChatTurn) {
	summaries := []models.Summary{
		{SummaryContent: "newest summary " + strings.Repeat("s", 200)},
		{SummaryContent: "oldest summary " + strings.Repeat("s", 200)},
	}
	turns := []models.ChatTurn{
		{Role: models.RoleUser, Content: "old question " + strings.Repeat("t", 200)},
		{Role: models.RoleAssistant, Content: "old answer " + strings.Repeat("t", 200)},
		{Role: models.RoleUser, Content: "recent question"},
		{Role: models.RoleAssistant, Content: "recent answer"},
	}
	return summaries, turns
}

func TestBuildPromptKeepsEverythingUnderBudget(t *testing.T) {
	cs := &ChatService{maxPromptChars: 100000}
	summaries, turns := promptFixture()

	sys, history := cs.buildPrompt(models.ModeExploring, Confidence{Level: ConfidenceHigh}, "", nil, summaries, turns, nil, "question")
	if !strings.Contains(sys, "oldest summary") || !strings.Contains(sys, "newest summary") {
		t.Error("summaries dropped despite ample budget")
	}
	if len(history) != 4 {
		t.Errorf("history length = %d, want 4", len(history))
	}
	// Storage order is newest-first; the prompt renders oldest first.
	if strings.Index(sys, "oldest summary") > strings.Index(sys, "newest summary") {
		t.Error("summaries not rendered oldest first")
	}
}

func TestBuildPromptDropsSummariesBeforeTurns(t *testing.T) {
	summaries, turns := promptFixture()
	base := &ChatService{maxPromptChars: 100000}
	full, _ := base.buildPrompt(models.ModeExploring, Confidence{}, "", nil, summaries, turns, nil, "question")

	// The history and user text count against the budget too (~460 chars
	// here), so this headroom forces exactly the oldest summary out while
	// the recent turns survive.
	cs := &ChatService{maxPromptChars: len(full) + 300}
	sys, history := cs.buildPrompt(models.ModeExploring, Confidence{}, "", nil, summaries, turns, nil, "question")
	if strings.Contains(sys, "oldest summary") {
		t.Error("oldest summary kept over budget")
	}
	if len(history) != 4 {
		t.Errorf("turns dropped before summaries: history length = %d", len(history))
	}
}

func TestBuildPromptDropsOldestTurnsLast(t *testing.T) {
	summaries, turns := promptFixture()
	cs := &ChatService{maxPromptChars: 600}

	sys, history := cs.buildPrompt(models.ModeExploring, Confidence{}, "", nil, summaries, turns, nil, "question")
	if strings.Contains(sys, "summary") {
		t.Error("summaries survived a tight budget")
	}
	if len(history) >= 4 {
		t.Errorf("no turns dropped: history length = %d", len(history))
	}
	if len(history) > 0 && history[len(history)-1].Content != "recent answer" {
		t.Errorf("newest turn lost: last = %q", history[len(history)-1].Content)
	}
}

// Stored roles are "USER"/"ASSISTANT"; the chat API only accepts "user"
// and "model", and system turns must not appear in history at all.
func TestBuildPromptMapsHistoryRoles(t *testing.T) {
	cs := &ChatService{maxPromptChars: 100000}
	turns := []models.ChatTurn{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
		{Role: models.RoleSystem, Content: "internal note"},
		{Role: models.RoleUser, Content: "next question"},
	}

	_, history := cs.buildPrompt(models.ModeExploring, Confidence{}, "", nil, nil, turns, nil, "q")
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3 (system turn excluded)", len(history))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Errorf("history[%d].Role = %q, want %q", i, history[i].Role, want)
		}
	}
	if history[2].Content != "next question" {
		t.Errorf("history[2].Content = %q", history[2].Content)
	}
}

func TestEnsureCompletionTokensBackfillsEstimate(t *testing.T) {
	answer := strings.Repeat("a", 400)

	got := ensureCompletionTokens(ai.Usage{PromptTokens: 12}, answer)
	if got.CompletionTokens != 100 {
		t.Errorf("completion tokens = %d, want 100", got.CompletionTokens)
	}
	if got.PromptTokens != 12 {
		t.Errorf("prompt tokens = %d, want 12", got.PromptTokens)
	}

	reported := ensureCompletionTokens(ai.Usage{CompletionTokens: 7}, answer)
	if reported.CompletionTokens != 7 {
		t.Errorf("provider count overwritten: %d", reported.CompletionTokens)
	}

	empty := ensureCompletionTokens(ai.Usage{}, "")
	if empty.CompletionTokens != 0 {
		t.Errorf("empty answer estimated %d tokens", empty.CompletionTokens)
	}
}

func TestBuildPromptHedgesOnLowConfidence(t *testing.T) {
	cs := &ChatService{maxPromptChars: 100000}
	sys, _ := cs.buildPrompt(models.ModeExploring, Confidence{Level: ConfidenceLow}, "", nil, nil, nil, nil, "q")
	if !strings.Contains(sys, "Hedge") {
		t.Error("low-confidence hedge missing from system prompt")
	}

	sys, _ = cs.buildPrompt(models.ModeExploring, Confidence{Level: ConfidenceHigh}, "", nil, nil, nil, nil, "q")
	if strings.Contains(sys, "Hedge") {
		t.Error("hedge present at high confidence")
	}
}
