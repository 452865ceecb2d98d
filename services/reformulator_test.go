package services

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/models"
)

func turn(role, content string, docs ...primitive.ObjectID) models.ChatTurn {
	return models.ChatTurn{
		ID:               primitive.NewObjectID(),
		Role:             role,
		Content:          content,
		RetrievedContext: docs,
	}
}

func TestAnchorDocIDsPicksLastAssistantWithContext(t *testing.T) {
	older := primitive.NewObjectID()
	newer := primitive.NewObjectID()
	recent := []models.ChatTurn{
		turn(models.RoleUser, "what does chapter 2 say"),
		turn(models.RoleAssistant, "chapter 2 covers setup", older),
		turn(models.RoleUser, "and chapter 3?"),
		turn(models.RoleAssistant, "chapter 3 covers tuning", newer),
		turn(models.RoleUser, "expand on that"),
	}

	ids := anchorDocIDs(recent)
	if len(ids) != 1 || ids[0] != newer {
		t.Errorf("anchor ids = %v, want [%v]", ids, newer)
	}
}

func TestAnchorDocIDsSkipsAssistantWithoutContext(t *testing.T) {
	docID := primitive.NewObjectID()
	recent := []models.ChatTurn{
		turn(models.RoleAssistant, "grounded answer", docID),
		turn(models.RoleUser, "hello"),
		turn(models.RoleAssistant, "hi there"),
	}
	ids := anchorDocIDs(recent)
	if len(ids) != 1 || ids[0] != docID {
		t.Errorf("anchor ids = %v, want [%v]", ids, docID)
	}

	if ids := anchorDocIDs([]models.ChatTurn{turn(models.RoleUser, "first message")}); ids != nil {
		t.Errorf("no assistant turns, got %v", ids)
	}
}

func TestLastExchangePairsFinalUserAndAssistant(t *testing.T) {
	recent := []models.ChatTurn{
		turn(models.RoleUser, "first question"),
		turn(models.RoleAssistant, "first answer"),
		turn(models.RoleUser, "second question"),
		turn(models.RoleAssistant, "second answer"),
	}

	pair := lastExchange(recent)
	if len(pair) != 2 {
		t.Fatalf("got %d turns, want 2", len(pair))
	}
	if pair[0].Content != "second question" || pair[1].Content != "second answer" {
		t.Errorf("pair = %q / %q", pair[0].Content, pair[1].Content)
	}
}

func TestLastExchangeWithoutAssistant(t *testing.T) {
	pair := lastExchange([]models.ChatTurn{turn(models.RoleUser, "only question")})
	if len(pair) != 0 {
		t.Errorf("got %d turns, want none", len(pair))
	}
}

func TestBuildReformulationPromptSections(t *testing.T) {
	recent := []models.ChatTurn{
		turn(models.RoleUser, "what is rrf"),
		turn(models.RoleAssistant, "rank fusion combines lists"),
	}
	similar := []models.ChatTurn{
		turn(models.RoleUser, "earlier related question"),
	}

	prompt := buildReformulationPrompt("how does it weight ranks", recent, similar)

	if !strings.Contains(prompt, "Most Recent Exchange:") {
		t.Error("missing recent-exchange block")
	}
	if !strings.Contains(prompt, "Broader Conversation History:") {
		t.Error("missing broader-history block")
	}
	if !strings.Contains(prompt, "USER: what is rrf") {
		t.Error("recent user turn not rendered")
	}
	if !strings.Contains(prompt, "earlier related question") {
		t.Error("similar turn not rendered")
	}
	if !strings.Contains(prompt, "User question: how does it weight ranks") {
		t.Error("question line missing")
	}

	noSimilar := buildReformulationPrompt("q", recent, nil)
	if strings.Contains(noSimilar, "Broader Conversation History:") {
		t.Error("empty similar list still rendered a history block")
	}
}
