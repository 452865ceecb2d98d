package services

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// Reformulation is the resolved query for one turn. AnchorDocIDs is
// non-empty only for follow-ups where a prior assistant turn recorded its
// retrieved documents.
type Reformulation struct {
	Query        string
	IsFollowUp   bool
	AnchorDocIDs []primitive.ObjectID
}

// QueryReformulator rewrites follow-up questions into standalone queries
// using recent and semantically similar conversation history.
type QueryReformulator struct {
	llm      ChatLLM
	embedder Embedder
	backend  SearchBackend
	turns    *store.TurnStore

	enabled        bool
	minRecent      int
	historyWindow  int
	maxQueryLength int
}

func NewQueryReformulator(cfg *config.Config, llm ChatLLM, embedder Embedder, backend SearchBackend, turns *store.TurnStore) *QueryReformulator {
	return &QueryReformulator{
		llm:            llm,
		embedder:       embedder,
		backend:        backend,
		turns:          turns,
		enabled:        cfg.ReformulationEnabled,
		minRecent:      cfg.MinRecentMessages,
		historyWindow:  cfg.HistoryWindow,
		maxQueryLength: cfg.MaxQueryLength,
	}
}

type reformulationResponse struct {
	NeedsReformulation bool   `json:"needsReformulation"`
	IsFollowUp         bool   `json:"isFollowUp"`
	Query              string `json:"query"`
	Reasoning          string `json:"reasoning"`
}

// Reformulate resolves the user's raw text against conversation history.
// Any LLM failure, including an open circuit breaker, returns the original
// query unanchored.
func (r *QueryReformulator) Reformulate(ctx context.Context, sessionID primitive.ObjectID, userText string) Reformulation {
	passthrough := Reformulation{Query: userText}
	if !r.enabled {
		return passthrough
	}

	recent, err := r.turns.ListRecent(ctx, sessionID, r.minRecent)
	if err != nil {
		logger.Warn("Reformulation history fetch failed", "error", err)
		return passthrough
	}
	if len(recent) == 0 {
		return passthrough
	}

	similar := r.similarTurns(ctx, sessionID, userText, recent)

	var resp reformulationResponse
	if err := r.llm.GenerateJSON(ctx, buildReformulationPrompt(userText, recent, similar), &resp); err != nil {
		logger.Warn("Query reformulation failed, using original", "error", err)
		return passthrough
	}

	query := userText
	if resp.NeedsReformulation {
		rewritten := strings.TrimSpace(resp.Query)
		if rewritten != "" {
			query = utils.TruncateChars(rewritten, r.maxQueryLength)
		}
	}

	out := Reformulation{Query: query, IsFollowUp: resp.IsFollowUp}
	if resp.IsFollowUp {
		out.AnchorDocIDs = anchorDocIDs(recent)
	}
	return out
}

// similarTurns fetches up to historyWindow semantically similar prior
// turns, dropping any already present in the recent window.
func (r *QueryReformulator) similarTurns(ctx context.Context, sessionID primitive.ObjectID, userText string, recent []models.ChatTurn) []models.ChatTurn {
	queryVector := r.embedder.EmbedQuery(ctx, userText)
	found, err := r.backend.SearchTurns(ctx, sessionID, userText, queryVector, r.historyWindow)
	if err != nil {
		logger.Warn("Similar-turn search failed", "error", err)
		return nil
	}

	seen := make(map[primitive.ObjectID]bool, len(recent))
	for _, t := range recent {
		seen[t.ID] = true
	}
	var out []models.ChatTurn
	for _, t := range found {
		if !seen[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// anchorDocIDs extracts the retrieved-document ids of the most recent
// assistant turn that recorded any.
func anchorDocIDs(recent []models.ChatTurn) []primitive.ObjectID {
	for i := len(recent) - 1; i >= 0; i-- {
		t := recent[i]
		if t.Role == models.RoleAssistant && len(t.RetrievedContext) > 0 {
			return append([]primitive.ObjectID(nil), t.RetrievedContext...)
		}
	}
	return nil
}

func buildReformulationPrompt(userText string, recent, similar []models.ChatTurn) string {
	var sb strings.Builder
	sb.WriteString(`Decide whether the user's question needs rewriting to stand alone outside this conversation. Respond with JSON:
{"needsReformulation": bool, "isFollowUp": bool, "query": "<standalone question>", "reasoning": "<brief>"}

`)

	sb.WriteString("Most Recent Exchange:\n")
	for _, t := range lastExchange(recent) {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}

	if len(similar) > 0 {
		sb.WriteString("\nBroader Conversation History:\n")
		for _, t := range similar {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
	}

	fmt.Fprintf(&sb, "\nUser question: %s\n", userText)
	return sb.String()
}

// lastExchange picks the final USER+ASSISTANT pair from the recent window.
func lastExchange(recent []models.ChatTurn) []models.ChatTurn {
	var assistant, user *models.ChatTurn
	for i := len(recent) - 1; i >= 0; i-- {
		t := recent[i]
		if assistant == nil && t.Role == models.RoleAssistant {
			assistant = &recent[i]
			continue
		}
		if assistant != nil && t.Role == models.RoleUser {
			user = &recent[i]
			break
		}
	}

	var out []models.ChatTurn
	if user != nil {
		out = append(out, *user)
	}
	if assistant != nil {
		out = append(out, *assistant)
	}
	return out
}
