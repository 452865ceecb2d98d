package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/internal/telemetry"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// Upload validation errors, mapped to API error codes by the routes.
var (
	ErrUnsupportedMime = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrDuplicateFile   = errors.New("file already uploaded to this session")
)

// DocumentService owns the document lifecycle: upload, the async
// processing pipeline, and deletion with index cleanup.
type DocumentService struct {
	stores    *store.Stores
	parsers   *ParserRegistry
	grouper   *SpatialGrouper
	chunker   *Chunker
	enricher  *Enricher
	indexer   *Indexer
	storage   *ImageStorage
	scheduler TaskScheduler
	metrics   *telemetry.Metrics
	uploadDir string
	allowed   map[string]bool
	maxBytes  int64
	staleAge  time.Duration
}

func NewDocumentService(cfg *config.Config, stores *store.Stores, parsers *ParserRegistry, grouper *SpatialGrouper, chunker *Chunker, enricher *Enricher, indexer *Indexer, storage *ImageStorage, scheduler TaskScheduler, metrics *telemetry.Metrics) *DocumentService {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = true
	}
	return &DocumentService{
		stores:    stores,
		parsers:   parsers,
		grouper:   grouper,
		chunker:   chunker,
		enricher:  enricher,
		indexer:   indexer,
		storage:   storage,
		scheduler: scheduler,
		metrics:   metrics,
		uploadDir: cfg.UploadDir,
		allowed:   allowed,
		maxBytes:  cfg.MaxFileSize,
		staleAge:  time.Duration(cfg.StaleProcessingMinutes) * time.Minute,
	}
}

// Upload validates and persists a PENDING document, stages its bytes for
// the worker, and enqueues processing only after the row is committed.
func (d *DocumentService) Upload(ctx context.Context, sessionID primitive.ObjectID, fileName, mimeType string, data []byte) (*models.Document, error) {
	if !d.allowed[mimeType] {
		return nil, ErrUnsupportedMime
	}
	if int64(len(data)) > d.maxBytes {
		return nil, ErrFileTooLarge
	}

	hash := utils.HashBytes(data)
	if existing, err := d.stores.Documents.FindByHash(ctx, sessionID, hash); err == nil && existing != nil {
		return existing, ErrDuplicateFile
	}

	doc := &models.Document{
		SessionID:  sessionID,
		FileName:   fileName,
		MimeType:   mimeType,
		FileSize:   int64(len(data)),
		FileHash:   hash,
		Status:     models.DocStatusPending,
		UploadedAt: time.Now(),
	}
	if err := d.stores.Documents.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("persisting document: %w", err)
	}

	if err := d.stageUpload(doc.ID, data); err != nil {
		d.failDocument(ctx, doc.ID, "staging upload failed")
		return nil, err
	}

	if err := d.scheduler.EnqueueDocumentProcess(ctx, doc.ID); err != nil {
		d.failDocument(ctx, doc.ID, "enqueue failed")
		return nil, fmt.Errorf("scheduling processing: %w", err)
	}
	logger.Info("Document uploaded", "document_id", doc.ID.Hex(), "file", fileName, "bytes", len(data))
	return doc, nil
}

func (d *DocumentService) stageUpload(docID primitive.ObjectID, data []byte) error {
	if err := os.MkdirAll(d.uploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	return os.WriteFile(d.stagedPath(docID), data, 0o644)
}

func (d *DocumentService) stagedPath(docID primitive.ObjectID) string {
	return filepath.Join(d.uploadDir, docID.Hex())
}

// Process runs the ingestion pipeline for one staged document: parse,
// spatial grouping, chunking, enrichment, embedding and index write. Any
// failure marks the document FAILED with the cause.
func (d *DocumentService) Process(ctx context.Context, docID primitive.ObjectID) error {
	started := time.Now()

	doc, err := d.stores.Documents.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	if err := d.stores.Documents.SetStatus(ctx, docID, models.DocStatusProcessing); err != nil {
		return fmt.Errorf("marking processing: %w", err)
	}

	data, err := os.ReadFile(d.stagedPath(docID))
	if err != nil {
		d.failDocument(ctx, docID, "staged upload missing")
		return fmt.Errorf("reading staged upload: %w", err)
	}
	defer os.Remove(d.stagedPath(docID))

	chunkCount, err := d.ingest(ctx, doc, data)
	if err != nil {
		d.failDocument(ctx, docID, err.Error())
		d.metrics.RecordDocProcessing(time.Since(started).Seconds(), models.DocStatusFailed)
		return err
	}

	if err := d.stores.Documents.SetReady(ctx, docID, chunkCount); err != nil {
		return fmt.Errorf("marking ready: %w", err)
	}
	d.metrics.RecordDocProcessing(time.Since(started).Seconds(), models.DocStatusReady)
	logger.Info("Document processed",
		"document_id", docID.Hex(),
		"chunks", chunkCount,
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (d *DocumentService) ingest(ctx context.Context, doc *models.Document, data []byte) (int, error) {
	tracer := otel.Tracer("document-pipeline")
	ctx, span := tracer.Start(ctx, "document.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", doc.ID.Hex()),
		attribute.String("document.mime_type", doc.MimeType),
	)

	_, parseSpan := tracer.Start(ctx, "document.parse")
	parsed, err := d.parsers.Parse(data, doc.MimeType, doc.FileName)
	parseSpan.End()
	if err != nil {
		return 0, err
	}

	parsed.Images = d.grouper.GroupAndComposite(parsed.Images)

	_, chunkSpan := tracer.Start(ctx, "document.chunk")
	drafts := d.chunker.Chunk(parsed)
	chunkSpan.SetAttributes(attribute.Int("document.chunks", len(drafts)))
	chunkSpan.End()

	analysis := d.enricher.AnalyzeDocument(ctx, doc.FileName, parsed.FullText)
	if analysis.Summary != "" {
		if err := d.stores.Documents.SetAnalysis(ctx, doc.ID, analysis.Summary, analysis.Topics); err != nil {
			logger.Warn("Persisting document analysis failed", "error", err)
		}
	}

	embedTexts := make([]string, len(drafts))
	for i, draft := range drafts {
		embedTexts[i] = draft.Content
	}
	drafts = d.enricher.EnrichChunks(ctx, analysis.Summary, drafts, embedTexts)

	ctx, indexSpan := tracer.Start(ctx, "document.index")
	defer indexSpan.End()
	return d.indexer.IndexDocument(ctx, doc, parsed, drafts, embedTexts)
}

func (d *DocumentService) failDocument(ctx context.Context, docID primitive.ObjectID, reason string) {
	if err := d.stores.Documents.SetFailed(ctx, docID, reason); err != nil {
		logger.Error("Marking document failed", "document_id", docID.Hex(), "error", err)
	}
}

// Get loads one document.
func (d *DocumentService) Get(ctx context.Context, docID primitive.ObjectID) (*models.Document, error) {
	return d.stores.Documents.Get(ctx, docID)
}

// List returns a session's documents, newest first.
func (d *DocumentService) List(ctx context.Context, sessionID primitive.ObjectID) ([]models.Document, error) {
	return d.stores.Documents.ListBySession(ctx, sessionID)
}

// Delete removes the document's chunks from the index and its images from
// blob and metadata storage before deleting the document row.
func (d *DocumentService) Delete(ctx context.Context, docID primitive.ObjectID) error {
	doc, err := d.stores.Documents.Get(ctx, docID)
	if err != nil {
		return err
	}

	if err := d.stores.Chunks.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := d.stores.Images.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting image rows: %w", err)
	}
	if err := d.storage.DeleteDocument(doc.SessionID, docID); err != nil {
		logger.Warn("Deleting image blobs failed", "document_id", docID.Hex(), "error", err)
	}
	os.Remove(d.stagedPath(docID))
	return d.stores.Documents.Delete(ctx, docID)
}

// SweepStaleProcessing fails documents stuck in PROCESSING longer than the
// configured age; a crashed worker would otherwise leave them in limbo.
func (d *DocumentService) SweepStaleProcessing(ctx context.Context) error {
	cutoff := time.Now().Add(-d.staleAge)
	stale, err := d.stores.Documents.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, doc := range stale {
		logger.Warn("Failing stale PROCESSING document", "document_id", doc.ID.Hex())
		d.failDocument(ctx, doc.ID, "processing timed out")
	}
	return nil
}
