package store

import (
	"go.mongodb.org/mongo-driver/mongo"

	"docchat-platform/internal/config"
)

// Stores bundles the per-entity repositories over one Mongo database.
type Stores struct {
	Sessions  *SessionStore
	Documents *DocumentStore
	Chunks    *ChunkStore
	Images    *ImageStore
	Turns     *TurnStore
	Summaries *SummaryStore
	Memories  *MemoryStore
}

func New(client *mongo.Client, cfg *config.Config) *Stores {
	db := client.Database(cfg.DBName)
	return &Stores{
		Sessions:  &SessionStore{col: db.Collection("sessions")},
		Documents: &DocumentStore{col: db.Collection("documents")},
		Chunks:    &ChunkStore{col: db.Collection("chunks")},
		Images:    &ImageStore{col: db.Collection("images")},
		Turns:     &TurnStore{col: db.Collection("chat_turns")},
		Summaries: &SummaryStore{col: db.Collection("summaries")},
		Memories:  &MemoryStore{col: db.Collection("memories")},
	}
}
