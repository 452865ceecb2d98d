package services

import (
	"context"
	"fmt"
	"strings"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/utils"
)

// DocumentAnalysis is the one-shot summary+topics result for a document.
type DocumentAnalysis struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// Enricher produces document-level analysis and per-chunk contextual
// prefixes via the LLM.
type Enricher struct {
	llm         ChatLLM
	enabled     bool
	maxAnalysis int
}

func NewEnricher(cfg *config.Config, llm ChatLLM) *Enricher {
	return &Enricher{
		llm:         llm,
		enabled:     cfg.ContextualChunkingEnabled,
		maxAnalysis: cfg.ContextualMaxSummaryChars,
	}
}

// AnalyzeDocument issues one structured call for {summary, topics}. On
// failure it retries summary-only; a second failure yields empty fields so
// ingestion proceeds without analysis.
func (e *Enricher) AnalyzeDocument(ctx context.Context, fileName, fullText string) DocumentAnalysis {
	input := utils.TruncateChars(fullText, e.maxAnalysis)

	prompt := fmt.Sprintf(`Analyze the following document and respond with JSON:
{"summary": "<800-1000 word summary>", "topics": ["<5-15 topics, each 20-40 words>"]}

Document: %s

%s`, fileName, input)

	var analysis DocumentAnalysis
	if err := e.llm.GenerateJSON(ctx, prompt, &analysis); err == nil && analysis.Summary != "" {
		return analysis
	}

	logger.Warn("Structured document analysis failed, retrying summary-only", "file", fileName)
	summary, err := e.llm.GenerateText(ctx, fmt.Sprintf(
		"Summarize the following document in 800-1000 words.\n\nDocument: %s\n\n%s", fileName, input))
	if err != nil {
		logger.Warn("Summary-only analysis failed", "file", fileName, "error", err)
		return DocumentAnalysis{}
	}
	return DocumentAnalysis{Summary: strings.TrimSpace(summary)}
}

// GeneratePrefix asks for a 1-2 sentence situating prefix for one chunk.
func (e *Enricher) GeneratePrefix(ctx context.Context, summary, chunkContent string) (string, error) {
	prompt := fmt.Sprintf(`Given this document summary:

%s

Write 1-2 sentences situating the chunk below within the document. Start with "This chunk" or "This section". Respond with only the sentences.

Chunk:
%s`, summary, chunkContent)

	prefix, err := e.llm.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(prefix), nil
}

// EnrichChunks fills each draft's prefix and mutates embedTexts in place so
// the content embedding covers prefix plus chunk. Disabled or per-chunk
// failures leave the affected chunks unprefixed.
func (e *Enricher) EnrichChunks(ctx context.Context, summary string, drafts []ChunkDraft, embedTexts []string) []ChunkDraft {
	if !e.enabled || summary == "" {
		return drafts
	}

	for i := range drafts {
		prefix, err := e.GeneratePrefix(ctx, summary, drafts[i].Content)
		if err != nil || prefix == "" {
			continue
		}
		drafts[i].ContextPrefix = prefix
		embedTexts[i] = prefix + "\n\n" + embedTexts[i]
	}
	return drafts
}
