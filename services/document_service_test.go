package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
)

func TestUploadValidatesTypeAndSizeFromConfig(t *testing.T) {
	d := NewDocumentService(&config.Config{
		AllowedTypes: []string{"application/pdf"},
		MaxFileSize:  10,
	}, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := d.Upload(context.Background(), primitive.NewObjectID(), "a.zip", "application/zip", []byte("x"))
	if !errors.Is(err, ErrUnsupportedMime) {
		t.Errorf("disallowed type: err = %v, want ErrUnsupportedMime", err)
	}

	_, err = d.Upload(context.Background(), primitive.NewObjectID(), "a.pdf", "application/pdf", make([]byte, 11))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversize: err = %v, want ErrFileTooLarge", err)
	}
}
