package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat turn roles.
const (
	RoleUser      = "USER"
	RoleAssistant = "ASSISTANT"
	RoleSystem    = "SYSTEM"
)

// ChatTurn is one persisted message. RetrievedContext holds the ordered
// document ids cited by an assistant turn; it is empty for user turns.
type ChatTurn struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	SessionID        primitive.ObjectID   `json:"session_id" bson:"session_id"`
	Role             string               `json:"role" bson:"role"`
	Content          string               `json:"content" bson:"content"`
	ModeUsed         Mode                 `json:"mode_used" bson:"mode_used"`
	TokenCount       int                  `json:"token_count" bson:"token_count"`
	IsCompacted      bool                 `json:"is_compacted" bson:"is_compacted"`
	IsPartial        bool                 `json:"is_partial,omitempty" bson:"is_partial,omitempty"`
	RetrievedContext []primitive.ObjectID `json:"retrieved_context,omitempty" bson:"retrieved_context,omitempty"`
	Embedding        []float32            `json:"-" bson:"embedding,omitempty"`
	CreatedAt        time.Time            `json:"created_at" bson:"created_at"`
}
