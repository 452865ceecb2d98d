package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chunk is the unit of indexing and retrieval. EnrichedContent is
// ContextPrefix + "\n\n" + Content when a prefix was generated, otherwise
// it equals Content.
type Chunk struct {
	ID                primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	DocumentID        primitive.ObjectID   `json:"document_id" bson:"document_id"`
	SessionID         primitive.ObjectID   `json:"session_id" bson:"session_id"`
	FileName          string               `json:"file_name" bson:"file_name"`
	ChunkIndex        int                  `json:"chunk_index" bson:"chunk_index"`
	Content           string               `json:"content" bson:"content,omitempty"`
	CompressedContent []byte               `json:"-" bson:"compressed_content,omitempty"`
	ContextPrefix     string               `json:"context_prefix,omitempty" bson:"context_prefix,omitempty"`
	EnrichedContent   string               `json:"enriched_content" bson:"enriched_content"`
	TitleEmbedding    []float32            `json:"-" bson:"title_embedding,omitempty"`
	ContentEmbedding  []float32            `json:"-" bson:"content_embedding,omitempty"`
	TokenCount        int                  `json:"token_count" bson:"token_count"`
	DocumentTitle     string               `json:"document_title" bson:"document_title"`
	SectionTitle      string               `json:"section_title,omitempty" bson:"section_title,omitempty"`
	SectionBreadcrumb []string             `json:"section_breadcrumb,omitempty" bson:"section_breadcrumb,omitempty"`
	Keywords          []string             `json:"keywords,omitempty" bson:"keywords,omitempty"`
	DocumentOffset    int                  `json:"document_offset" bson:"document_offset"`
	AssociatedImages  []primitive.ObjectID `json:"associated_image_ids,omitempty" bson:"associated_image_ids,omitempty"`
}

// Breadcrumb renders the section path as "a > b > c".
func (c *Chunk) Breadcrumb() string {
	out := ""
	for i, part := range c.SectionBreadcrumb {
		if i > 0 {
			out += " > "
		}
		out += part
	}
	return out
}
