package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
)

// ImageStorage writes extracted image bytes to the blob directory, laid
// out as {base}/{sessionId}/{documentId}/{imageIndex}.{ext}.
type ImageStorage struct {
	basePath string
	maxBytes int64
}

func NewImageStorage(cfg *config.Config) *ImageStorage {
	return &ImageStorage{basePath: cfg.ImageBasePath, maxBytes: cfg.ImageMaxFileSizeBytes}
}

// Save writes one image and returns its path. Oversize images are skipped
// with a warning and an empty path.
func (s *ImageStorage) Save(sessionID, documentID primitive.ObjectID, imageIndex int, data []byte, mimeType string) (string, error) {
	if int64(len(data)) > s.maxBytes {
		logger.Warn("Skipping oversize image",
			"document_id", documentID.Hex(),
			"image_index", imageIndex,
			"bytes", len(data))
		return "", nil
	}

	dir := filepath.Join(s.basePath, sessionID.Hex(), documentID.Hex())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d%s", imageIndex, extensionFor(mimeType)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path, nil
}

// Read returns the stored bytes for an image path, refusing paths outside
// the blob directory.
func (s *ImageStorage) Read(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Clean(s.basePath)
	if !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return nil, fmt.Errorf("image path outside storage root")
	}
	return os.ReadFile(cleaned)
}

// DeleteDocument removes a document's image directory.
func (s *ImageStorage) DeleteDocument(sessionID, documentID primitive.ObjectID) error {
	return os.RemoveAll(filepath.Join(s.basePath, sessionID.Hex(), documentID.Hex()))
}

// DeleteSession removes a session's entire image tree.
func (s *ImageStorage) DeleteSession(sessionID primitive.ObjectID) error {
	return os.RemoveAll(filepath.Join(s.basePath, sessionID.Hex()))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
