package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/store"
	"docchat-platform/models"
)

const derivedTitleMaxChars = 60

// SessionService manages sessions and their cascading deletes.
type SessionService struct {
	stores  *store.Stores
	storage *ImageStorage
}

func NewSessionService(stores *store.Stores, storage *ImageStorage) *SessionService {
	return &SessionService{stores: stores, storage: storage}
}

func (s *SessionService) Create(ctx context.Context, title string, mode models.Mode) (*models.Session, error) {
	session := &models.Session{
		Title:       strings.TrimSpace(title),
		CurrentMode: mode,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if session.Title == "" {
		session.Title = "New session"
	}
	if err := s.stores.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, id primitive.ObjectID) (*models.Session, error) {
	return s.stores.Sessions.Get(ctx, id)
}

func (s *SessionService) List(ctx context.Context) ([]models.Session, error) {
	return s.stores.Sessions.List(ctx)
}

func (s *SessionService) Update(ctx context.Context, id primitive.ObjectID, title *string, mode *models.Mode) (*models.Session, error) {
	return s.stores.Sessions.Update(ctx, id, title, mode)
}

// DeriveTitle replaces the placeholder title with the first user message,
// truncated on a word boundary. No-op once a real title exists.
func (s *SessionService) DeriveTitle(ctx context.Context, id primitive.ObjectID, firstMessage string) {
	session, err := s.stores.Sessions.Get(ctx, id)
	if err != nil || session.Title != "New session" {
		return
	}

	title := strings.Join(strings.Fields(firstMessage), " ")
	if len(title) > derivedTitleMaxChars {
		cut := strings.LastIndex(title[:derivedTitleMaxChars], " ")
		if cut < derivedTitleMaxChars/2 {
			cut = derivedTitleMaxChars
		}
		title = title[:cut] + "…"
	}
	if title == "" {
		return
	}
	if _, err := s.stores.Sessions.Update(ctx, id, &title, nil); err != nil {
		logger.Warn("Deriving session title failed", "session_id", id.Hex(), "error", err)
	}
}

// Delete removes the session and everything it owns: documents, chunks,
// images (rows and blobs), turns, summaries and memories.
func (s *SessionService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.stores.Sessions.Get(ctx, id); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"chunks", func() error { return s.stores.Chunks.DeleteBySession(ctx, id) }},
		{"image rows", func() error { return s.stores.Images.DeleteBySession(ctx, id) }},
		{"image blobs", func() error { return s.storage.DeleteSession(id) }},
		{"documents", func() error { return s.stores.Documents.DeleteBySession(ctx, id) }},
		{"turns", func() error { return s.stores.Turns.DeleteBySession(ctx, id) }},
		{"summaries", func() error { return s.stores.Summaries.DeleteBySession(ctx, id) }},
		{"memories", func() error { return s.stores.Memories.DeleteBySession(ctx, id) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("deleting session %s: %w", step.name, err)
		}
	}
	return s.stores.Sessions.Delete(ctx, id)
}
