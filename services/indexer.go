package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/store"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// Indexer turns chunk drafts into embedded, persisted chunks and writes
// image blobs alongside their metadata rows.
type Indexer struct {
	embedder Embedder
	chunks   *store.ChunkStore
	images   *store.ImageStore
	storage  *ImageStorage
}

func NewIndexer(embedder Embedder, chunks *store.ChunkStore, images *store.ImageStore, storage *ImageStorage) *Indexer {
	return &Indexer{embedder: embedder, chunks: chunks, images: images, storage: storage}
}

// IndexDocument embeds and persists the document's chunks and images,
// returning the chunk count. A chunk whose embedding fails is still
// written; retrieval scores it lexically only.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *models.Document, parsed *models.ParsedDocument, drafts []ChunkDraft, embedTexts []string) (int, error) {
	imageIDs, err := ix.saveImages(ctx, doc, parsed.Images)
	if err != nil {
		return 0, err
	}
	if len(drafts) == 0 {
		return 0, nil
	}

	titleTexts := make([]string, len(drafts))
	for i, d := range drafts {
		titleTexts[i] = parsed.Title
		if d.SectionTitle != "" {
			titleTexts[i] = parsed.Title + " > " + d.SectionTitle
		}
	}
	titleEmbeddings := ix.embedder.EmbedPassages(ctx, titleTexts)
	contentEmbeddings := ix.embedder.EmbedPassages(ctx, embedTexts)

	chunks := make([]models.Chunk, len(drafts))
	for i, d := range drafts {
		enriched := d.Content
		if d.ContextPrefix != "" {
			enriched = d.ContextPrefix + "\n\n" + d.Content
		}

		chunk := models.Chunk{
			DocumentID:        doc.ID,
			SessionID:         doc.SessionID,
			FileName:          doc.FileName,
			ChunkIndex:        i,
			Content:           d.Content,
			ContextPrefix:     d.ContextPrefix,
			EnrichedContent:   enriched,
			TokenCount:        utils.EstimateTokens(enriched),
			DocumentTitle:     parsed.Title,
			SectionTitle:      d.SectionTitle,
			SectionBreadcrumb: d.Breadcrumb,
			Keywords:          d.Keywords,
			DocumentOffset:    d.DocumentOffset,
		}
		if i < len(titleEmbeddings) {
			chunk.TitleEmbedding = titleEmbeddings[i]
		}
		if i < len(contentEmbeddings) {
			chunk.ContentEmbedding = contentEmbeddings[i]
		}
		for _, imgIdx := range d.ImageIndices {
			if id, ok := imageIDs[imgIdx]; ok {
				chunk.AssociatedImages = append(chunk.AssociatedImages, id)
			}
		}
		chunks[i] = chunk
	}

	if err := ix.chunks.InsertMany(ctx, chunks); err != nil {
		return 0, fmt.Errorf("persisting chunks: %w", err)
	}
	return len(chunks), nil
}

// saveImages writes blobs and metadata rows, returning parsed-image index
// to stored id. Oversize images produce neither.
func (ix *Indexer) saveImages(ctx context.Context, doc *models.Document, images []models.ParsedImage) (map[int]primitive.ObjectID, error) {
	ids := make(map[int]primitive.ObjectID, len(images))
	for i, parsed := range images {
		path, err := ix.storage.Save(doc.SessionID, doc.ID, i, parsed.Data, parsed.MimeType)
		if err != nil {
			return nil, fmt.Errorf("storing image %d: %w", i, err)
		}
		if path == "" {
			continue
		}

		image := models.Image{
			DocumentID:     doc.ID,
			SessionID:      doc.SessionID,
			ImageIndex:     i,
			MimeType:       parsed.MimeType,
			AltText:        parsed.AltText,
			FilePath:       path,
			Width:          parsed.Width,
			Height:         parsed.Height,
			SpatialGroupID: parsed.GroupID,
		}
		if parsed.PageNumber > 0 {
			page := parsed.PageNumber
			x, y := parsed.XPDF, parsed.YPDF
			image.PageNumber = &page
			image.XPDF = &x
			image.YPDF = &y
		}
		if err := ix.images.Insert(ctx, &image); err != nil {
			return nil, fmt.Errorf("persisting image %d: %w", i, err)
		}
		ids[i] = image.ID
	}
	return ids, nil
}
