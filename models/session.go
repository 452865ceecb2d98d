package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mode controls retrieval breadth and prompt flavor for a session.
type Mode string

const (
	ModeExploring Mode = "EXPLORING"
	ModeResearch  Mode = "RESEARCH"
	ModeLearning  Mode = "LEARNING"
)

// ParseMode validates a mode string, falling back to EXPLORING.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeExploring, ModeResearch, ModeLearning:
		return Mode(s), true
	}
	return ModeExploring, false
}

// RetrievalCount is the number of chunks retrieved per turn in this mode.
func (m Mode) RetrievalCount() int {
	switch m {
	case ModeResearch:
		return 10
	case ModeLearning:
		return 7
	default:
		return 5
	}
}

// PromptFlavor is appended to the system prompt to shape the answer style.
func (m Mode) PromptFlavor() string {
	switch m {
	case ModeResearch:
		return "The user is in research mode. Be thorough and precise, compare sources when they disagree, and always point to the specific documents that support each claim."
	case ModeLearning:
		return "The user is in learning mode. Explain concepts step by step, build on what was already discussed, and suggest what to study next."
	default:
		return "The user is exploring their documents. Keep answers focused and invite follow-up questions about related topics found in the documents."
	}
}

type Session struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	CurrentMode Mode               `json:"current_mode" bson:"current_mode"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}
