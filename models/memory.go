package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory types.
const (
	MemoryFact       = "fact"
	MemoryPreference = "preference"
	MemoryInsight    = "insight"
)

// Memory is a durable fact, preference or insight distilled from a chat
// exchange. Importance is in [0,1] and is bumped when the same content is
// extracted again.
type Memory struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID      primitive.ObjectID `json:"session_id" bson:"session_id"`
	Content        string             `json:"content" bson:"content"`
	Type           string             `json:"type" bson:"type"`
	Importance     float64            `json:"importance" bson:"importance"`
	Embedding      []float32          `json:"-" bson:"embedding,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at" bson:"last_accessed_at"`
}

// ValidMemoryType reports whether t is a known memory type.
func ValidMemoryType(t string) bool {
	return t == MemoryFact || t == MemoryPreference || t == MemoryInsight
}
