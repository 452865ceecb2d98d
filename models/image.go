package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Image is an extracted document image. Composite images rendered from a
// spatial group carry SpatialGroupID >= 0; their member singletons are not
// referenced by any chunk.
type Image struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DocumentID     primitive.ObjectID `json:"document_id" bson:"document_id"`
	SessionID      primitive.ObjectID `json:"session_id" bson:"session_id"`
	ImageIndex     int                `json:"image_index" bson:"image_index"`
	MimeType       string             `json:"mime_type" bson:"mime_type"`
	AltText        string             `json:"alt_text,omitempty" bson:"alt_text,omitempty"`
	FilePath       string             `json:"-" bson:"file_path"`
	Width          int                `json:"width" bson:"width"`
	Height         int                `json:"height" bson:"height"`
	PageNumber     *int               `json:"page_number,omitempty" bson:"page_number,omitempty"`
	XPDF           *float64           `json:"x_pdf,omitempty" bson:"x_pdf,omitempty"`
	YPDF           *float64           `json:"y_pdf,omitempty" bson:"y_pdf,omitempty"`
	SpatialGroupID int                `json:"spatial_group_id" bson:"spatial_group_id"`
}
