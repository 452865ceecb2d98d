package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/internal/telemetry"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// Compactor folds old chat turns into summaries once the uncompacted
// history grows past the token threshold.
type Compactor struct {
	llm       ChatLLM
	turns     *store.TurnStore
	summaries *store.SummaryStore
	metrics   *telemetry.Metrics

	thresholdTokens int
	targetTokens    int
	minTurns        int
}

func NewCompactor(cfg *config.Config, llm ChatLLM, turns *store.TurnStore, summaries *store.SummaryStore, metrics *telemetry.Metrics) *Compactor {
	return &Compactor{
		llm:             llm,
		turns:           turns,
		summaries:       summaries,
		metrics:         metrics,
		thresholdTokens: cfg.CompactionThresholdTokens,
		targetTokens:    cfg.CompactionTargetTokens,
		minTurns:        cfg.MinCompactTurns,
	}
}

// NeedsCompaction reports whether the session's uncompacted turns exceed
// the threshold.
func (c *Compactor) NeedsCompaction(ctx context.Context, sessionID primitive.ObjectID) (bool, error) {
	sum, err := c.turns.UncompactedTokenSum(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sum > c.thresholdTokens, nil
}

// Compact summarizes the oldest contiguous run of uncompacted turns whose
// token counts sum to at least the target, then marks those turns
// compacted. Sessions with too few turns are skipped.
func (c *Compactor) Compact(ctx context.Context, sessionID primitive.ObjectID) error {
	turns, err := c.turns.ListUncompactedOldestFirst(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing turns: %w", err)
	}
	if len(turns) < c.minTurns {
		logger.Debug("Skipping compaction, too few turns", "session_id", sessionID.Hex(), "turns", len(turns))
		return nil
	}

	var run []models.ChatTurn
	runTokens := 0
	for _, t := range turns {
		run = append(run, t)
		runTokens += t.TokenCount
		if runTokens >= c.targetTokens {
			break
		}
	}
	if len(run) < c.minTurns {
		run = turns[:c.minTurns]
		runTokens = 0
		for _, t := range run {
			runTokens += t.TokenCount
		}
	}

	var transcript strings.Builder
	for _, t := range run {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Content)
	}

	summaryText, err := c.llm.GenerateText(ctx, fmt.Sprintf(
		"Summarize this conversation segment, preserving concrete facts, decisions and open questions. Be concise.\n\n%s",
		transcript.String()))
	if err != nil {
		return fmt.Errorf("summarizing turns: %w", err)
	}
	summaryText = strings.TrimSpace(summaryText)

	summary := &models.Summary{
		SessionID:          sessionID,
		SummaryContent:     summaryText,
		MessageCount:       len(run),
		TokenCount:         utils.EstimateTokens(summaryText),
		OriginalTokenCount: runTokens,
		FromTimestamp:      run[0].CreatedAt,
		ToTimestamp:        run[len(run)-1].CreatedAt,
		CreatedAt:          time.Now(),
	}
	if err := c.summaries.Insert(ctx, summary); err != nil {
		return fmt.Errorf("persisting summary: %w", err)
	}

	ids := make([]primitive.ObjectID, len(run))
	for i, t := range run {
		ids[i] = t.ID
	}
	if err := c.turns.MarkCompacted(ctx, ids); err != nil {
		return fmt.Errorf("marking turns compacted: %w", err)
	}

	c.metrics.RecordCompaction()
	logger.Info("Compacted chat history",
		"session_id", sessionID.Hex(),
		"turns", len(run),
		"original_tokens", runTokens,
		"summary_tokens", summary.TokenCount)
	return nil
}
