package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing statuses.
const (
	DocStatusPending    = "PENDING"
	DocStatusProcessing = "PROCESSING"
	DocStatusReady      = "READY"
	DocStatusFailed     = "FAILED"
)

type Document struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID       primitive.ObjectID `json:"session_id" bson:"session_id"`
	FileName        string             `json:"file_name" bson:"file_name"`
	MimeType        string             `json:"mime_type" bson:"mime_type"`
	FileSize        int64              `json:"file_size" bson:"file_size"`
	FileHash        string             `json:"-" bson:"file_hash"`
	Status          string             `json:"status" bson:"status"`
	ChunkCount      int                `json:"chunk_count" bson:"chunk_count"`
	Summary         string             `json:"summary,omitempty" bson:"summary,omitempty"`
	Topics          []string           `json:"topics,omitempty" bson:"topics,omitempty"`
	ProcessingError string             `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
	UploadedAt      time.Time          `json:"uploaded_at" bson:"uploaded_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}
