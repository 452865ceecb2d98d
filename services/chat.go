package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/internal/telemetry"
	"docchat-platform/models"
	"docchat-platform/utils"
)

const (
	eventBuffer      = 64
	memoriesInPrompt = 5
	recentTurnWindow = 10
	citationExcerpt  = 300
)

// ChatService orchestrates one conversational turn end to end:
// reformulation, retrieval, prompt assembly, streaming generation, and the
// post-reply background work.
type ChatService struct {
	stores       *store.Stores
	llm          ChatLLM
	embedder     Embedder
	search       *HybridSearchService
	reformulator *QueryReformulator
	memory       *MemoryEngine
	compactor    *Compactor
	topics       *TopicIndexBuilder
	sessions     *SessionService
	scheduler    TaskScheduler
	metrics      *telemetry.Metrics

	maxPromptChars    int
	summariesInPrompt int
	anchoringEnabled  bool
}

func NewChatService(cfg *config.Config, stores *store.Stores, llm ChatLLM, embedder Embedder, search *HybridSearchService, reformulator *QueryReformulator, memory *MemoryEngine, compactor *Compactor, topics *TopicIndexBuilder, sessions *SessionService, scheduler TaskScheduler, metrics *telemetry.Metrics) *ChatService {
	return &ChatService{
		stores:            stores,
		llm:               llm,
		embedder:          embedder,
		search:            search,
		reformulator:      reformulator,
		memory:            memory,
		compactor:         compactor,
		topics:            topics,
		sessions:          sessions,
		scheduler:         scheduler,
		metrics:           metrics,
		maxPromptChars:    cfg.MaxPromptChars,
		summariesInPrompt: cfg.SummariesInPrompt,
		anchoringEnabled:  cfg.SourceAnchoringEnabled,
	}
}

// StreamChat runs one turn and emits the ordered event sequence
// token* citation* (done | error) on the returned channel, which is closed
// when the turn finishes.
func (cs *ChatService) StreamChat(ctx context.Context, sessionID primitive.ObjectID, userText string) (<-chan models.StreamEvent, error) {
	session, err := cs.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events := make(chan models.StreamEvent, eventBuffer)
	go func() {
		defer close(events)
		cs.runTurn(ctx, session, userText, events)
	}()
	return events, nil
}

func (cs *ChatService) runTurn(ctx context.Context, session *models.Session, userText string, events chan<- models.StreamEvent) {
	mode := session.CurrentMode

	reformulated := cs.reformulator.Reformulate(ctx, session.ID, userText)

	var anchors []primitive.ObjectID
	if reformulated.IsFollowUp && cs.anchoringEnabled {
		anchors = reformulated.AnchorDocIDs
	}
	details, err := cs.search.SearchWithDetails(ctx, session.ID, reformulated.Query, mode, anchors)
	if err != nil {
		cs.emitError(events, utils.CodeSearchFailed, "retrieval failed", err)
		return
	}
	confidence := ScoreConfidence(details)

	var (
		memories    []models.Memory
		topicIndex  string
		summaries   []models.Summary
		recentTurns []models.ChatTurn
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memories, err = cs.memory.GetRelevantMemories(gctx, session.ID, reformulated.Query, memoriesInPrompt)
		if err != nil {
			logger.Warn("Memory recall failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		topicIndex, err = cs.topics.Build(gctx, session.ID, mode)
		if err != nil {
			logger.Warn("Topic index build failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		summaries, err = cs.stores.Summaries.ListRecent(gctx, session.ID, cs.summariesInPrompt)
		if err != nil {
			logger.Warn("Summary fetch failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recentTurns, err = cs.stores.Turns.ListRecentUncompacted(gctx, session.ID, recentTurnWindow)
		if err != nil {
			logger.Warn("Recent turn fetch failed", "error", err)
		}
		return nil
	})
	g.Wait()

	userTurn := &models.ChatTurn{
		SessionID:  session.ID,
		Role:       models.RoleUser,
		Content:    userText,
		ModeUsed:   mode,
		TokenCount: utils.EstimateTokens(userText),
		Embedding:  cs.embedder.EmbedPassage(ctx, userText),
		CreatedAt:  time.Now(),
	}
	if err := cs.stores.Turns.Insert(ctx, userTurn); err != nil {
		cs.emitError(events, utils.CodeInternal, "persisting message failed", err)
		return
	}
	cs.sessions.DeriveTitle(ctx, session.ID, userText)

	systemPrompt, history := cs.buildPrompt(mode, confidence, topicIndex, memories, summaries, recentTurns, details.Final, userText)

	var answer strings.Builder
	usage, streamErr := cs.llm.GenerateStream(ctx, systemPrompt, history, userText, func(token string) {
		answer.WriteString(token)
		events <- models.StreamEvent{Type: models.EventToken, Token: &models.TokenEvent{Content: token}}
	})

	docIDs := orderedDocumentIDs(details.Final)

	if streamErr != nil {
		errorID := uuid.NewString()
		logger.Error("Chat stream failed", "error_id", errorID, "session_id", session.ID.Hex(), "error", streamErr)
		if answer.Len() > 0 {
			cs.persistAssistantTurn(ctx, session.ID, mode, answer.String(), docIDs, true)
		}
		events <- models.StreamEvent{Type: models.EventError, Error: &models.ErrorEvent{
			ErrorID: errorID,
			Message: "the assistant is temporarily unavailable",
		}}
		return
	}

	for _, hit := range details.Final {
		events <- models.StreamEvent{Type: models.EventCitation, Citation: citationFor(hit)}
	}

	assistantTurn := cs.persistAssistantTurn(ctx, session.ID, mode, answer.String(), docIDs, false)

	messageID := ""
	if assistantTurn != nil {
		messageID = assistantTurn.ID.Hex()
	}
	usage = ensureCompletionTokens(usage, answer.String())
	cs.metrics.RecordTokensUsed(int64(usage.PromptTokens+usage.CompletionTokens), "gemini")
	events <- models.StreamEvent{Type: models.EventDone, Done: &models.DoneEvent{
		MessageID:        messageID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}}

	cs.afterReply(session.ID, userText, answer.String(), mode)
}

// afterReply schedules the fire-and-forget work: memory extraction and,
// when the history has grown past the threshold, compaction.
func (cs *ChatService) afterReply(sessionID primitive.ObjectID, userText, answer string, mode models.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := cs.scheduler.EnqueueMemoryExtract(ctx, sessionID, userText, answer, mode); err != nil {
		logger.Warn("Scheduling memory extraction failed", "error", err)
	}

	need, err := cs.compactor.NeedsCompaction(ctx, sessionID)
	if err != nil {
		logger.Warn("Compaction check failed", "error", err)
		return
	}
	if need {
		if err := cs.scheduler.EnqueueSessionCompact(ctx, sessionID); err != nil {
			logger.Warn("Scheduling compaction failed", "error", err)
		}
	}
}

func (cs *ChatService) persistAssistantTurn(ctx context.Context, sessionID primitive.ObjectID, mode models.Mode, content string, docIDs []primitive.ObjectID, partial bool) *models.ChatTurn {
	turn := &models.ChatTurn{
		SessionID:        sessionID,
		Role:             models.RoleAssistant,
		Content:          content,
		ModeUsed:         mode,
		TokenCount:       utils.EstimateTokens(content),
		IsPartial:        partial,
		RetrievedContext: docIDs,
		Embedding:        cs.embedder.EmbedPassage(ctx, content),
		CreatedAt:        time.Now(),
	}
	if err := cs.stores.Turns.Insert(ctx, turn); err != nil {
		logger.Error("Persisting assistant turn failed", "session_id", sessionID.Hex(), "error", err)
		return nil
	}
	return turn
}

// buildPrompt assembles the system prompt and prior-turn history under the
// character budget. Older summaries are dropped first, then the oldest
// recent turns; the retrieved context and current message always fit.
func (cs *ChatService) buildPrompt(mode models.Mode, confidence Confidence, topicIndex string, memories []models.Memory, summaries []models.Summary, recentTurns []models.ChatTurn, hits []ScoredChunk, userText string) (string, []ai.Message) {
	docContext := buildDocumentContext(hits)

	// System turns never enter the chat API history; its role vocabulary
	// only has "user" and "model".
	priorTurns := make([]models.ChatTurn, 0, len(recentTurns))
	for _, t := range recentTurns {
		if t.Role == models.RoleSystem {
			continue
		}
		priorTurns = append(priorTurns, t)
	}

	assemble := func(summaryCount, turnCount int) (string, []ai.Message, int) {
		var sys strings.Builder
		sys.WriteString("You are a document assistant. Answer using only the provided document context and conversation history. Cite the sources you draw on, and say so plainly when the documents do not contain the answer.\n\n")
		sys.WriteString(mode.PromptFlavor())
		if confidence.Level == ConfidenceLow {
			sys.WriteString("\n\nThe retrieved passages match this question only weakly. Hedge appropriately and make clear which parts of the answer are uncertain.")
		}
		if topicIndex != "" {
			sys.WriteString("\n\n" + topicIndex)
		}
		if block := BuildMemoryContext(memories); block != "" {
			sys.WriteString("\n\n" + block)
		}
		if summaryCount > 0 {
			sys.WriteString("\n\nEarlier conversation summaries:")
			// Newest-first in storage; render oldest first.
			kept := summaries[:summaryCount]
			for i := len(kept) - 1; i >= 0; i-- {
				sys.WriteString("\n- " + kept[i].SummaryContent)
			}
		}
		if docContext != "" {
			sys.WriteString("\n\n" + docContext)
		}

		turns := priorTurns[len(priorTurns)-turnCount:]
		history := make([]ai.Message, 0, len(turns))
		total := sys.Len() + len(userText)
		for _, t := range turns {
			history = append(history, ai.Message{Role: geminiRole(t.Role), Content: t.Content})
			total += len(t.Content)
		}
		return sys.String(), history, total
	}

	summaryCount, turnCount := len(summaries), len(priorTurns)
	sys, history, total := assemble(summaryCount, turnCount)
	for total > cs.maxPromptChars && summaryCount > 0 {
		summaryCount--
		sys, history, total = assemble(summaryCount, turnCount)
	}
	for total > cs.maxPromptChars && turnCount > 0 {
		turnCount--
		sys, history, total = assemble(summaryCount, turnCount)
	}
	return sys, history
}

// geminiRole maps stored turn roles onto the chat API vocabulary.
// Assistant turns become "model"; everything else is "user".
func geminiRole(role string) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

// ensureCompletionTokens backfills a missing provider token count with the
// character-based estimate over the streamed answer.
func ensureCompletionTokens(usage ai.Usage, answer string) ai.Usage {
	if usage.CompletionTokens == 0 && answer != "" {
		usage.CompletionTokens = utils.EstimateTokens(answer)
	}
	return usage
}

func buildDocumentContext(hits []ScoredChunk) string {
	if len(hits) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("=== DOCUMENT CONTEXT ===\n")
	for i, hit := range hits {
		c := hit.Chunk
		header := fmt.Sprintf("[Source %d: %s — %s", i+1, c.FileName, c.DocumentTitle)
		if c.SectionTitle != "" {
			header += " > Section: " + c.SectionTitle
		}
		header += "]"
		sb.WriteString(header + "\n" + c.Content + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func citationFor(hit ScoredChunk) *models.CitationEvent {
	c := hit.Chunk
	chunkIndex := c.ChunkIndex

	var imageIDs []string
	for _, id := range c.AssociatedImages {
		imageIDs = append(imageIDs, id.Hex())
	}

	return &models.CitationEvent{
		Source:            c.FileName,
		Page:              &chunkIndex,
		Text:              utils.TruncateChars(c.Content, citationExcerpt),
		SectionBreadcrumb: c.SectionBreadcrumb,
		ImageIDs:          imageIDs,
		DocumentID:        c.DocumentID.Hex(),
	}
}

// orderedDocumentIDs keeps the first occurrence of each document id in
// final-ranking order.
func orderedDocumentIDs(hits []ScoredChunk) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, hit := range hits {
		if !seen[hit.Chunk.DocumentID] {
			seen[hit.Chunk.DocumentID] = true
			out = append(out, hit.Chunk.DocumentID)
		}
	}
	return out
}

func (cs *ChatService) emitError(events chan<- models.StreamEvent, code, message string, err error) {
	errorID := uuid.NewString()
	logger.Error("Chat turn failed", "error_id", errorID, "code", code, "error", err)
	events <- models.StreamEvent{Type: models.EventError, Error: &models.ErrorEvent{
		ErrorID: errorID,
		Message: message,
	}}
}
