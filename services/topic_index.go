package services

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/store"
	"docchat-platform/models"
)

// TopicIndexBuilder renders the per-session topic index block used to
// steer the assistant toward documented material.
type TopicIndexBuilder struct {
	documents *store.DocumentStore
}

func NewTopicIndexBuilder(documents *store.DocumentStore) *TopicIndexBuilder {
	return &TopicIndexBuilder{documents: documents}
}

// Build concatenates topics of READY documents and appends a mode-specific
// instruction. Empty result means no READY document carries topics.
func (b *TopicIndexBuilder) Build(ctx context.Context, sessionID primitive.ObjectID, mode models.Mode) (string, error) {
	docs, err := b.documents.ListReadyWithTopics(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Topic index of this session's documents:\n\n")
	for _, doc := range docs {
		fmt.Fprintf(&sb, "%s:\n", doc.FileName)
		for _, topic := range doc.Topics {
			fmt.Fprintf(&sb, "- %s\n", topic)
		}
		sb.WriteString("\n")
	}

	switch mode {
	case models.ModeExploring:
		sb.WriteString("When suggesting follow-up questions, only suggest topics present in this index.")
	case models.ModeResearch:
		sb.WriteString("Focus your answers on the documented areas listed in this index.")
	case models.ModeLearning:
		sb.WriteString("Use this index to guide the learner toward related next topics.")
	}
	return sb.String(), nil
}
