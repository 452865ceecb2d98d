package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Summary covers a contiguous run of compacted chat turns.
type Summary struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID          primitive.ObjectID `json:"session_id" bson:"session_id"`
	SummaryContent     string             `json:"summary_content" bson:"summary_content"`
	MessageCount       int                `json:"message_count" bson:"message_count"`
	TokenCount         int                `json:"token_count" bson:"token_count"`
	OriginalTokenCount int                `json:"original_token_count" bson:"original_token_count"`
	FromTimestamp      time.Time          `json:"from_timestamp" bson:"from_timestamp"`
	ToTimestamp        time.Time          `json:"to_timestamp" bson:"to_timestamp"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
}

// CompressionRatio is 1 - compacted/original token count, floored at zero.
func (s *Summary) CompressionRatio() float64 {
	if s.OriginalTokenCount <= 0 {
		return 0
	}
	ratio := 1 - float64(s.TokenCount)/float64(s.OriginalTokenCount)
	if ratio < 0 {
		return 0
	}
	return ratio
}
