package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-platform/models"
)

type ImageStore struct {
	col *mongo.Collection
}

func (s *ImageStore) Insert(ctx context.Context, image *models.Image) error {
	res, err := s.col.InsertOne(ctx, image)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	image.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ImageStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Image, error) {
	var image models.Image
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&image)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find image: %w", err)
	}
	return &image, nil
}

func (s *ImageStore) ListByDocument(ctx context.Context, documentID primitive.ObjectID) ([]models.Image, error) {
	cursor, err := s.col.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "image_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var images []models.Image
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func (s *ImageStore) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Image, error) {
	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("list session images: %w", err)
	}
	var images []models.Image
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode session images: %w", err)
	}
	return images, nil
}

func (s *ImageStore) DeleteByDocument(ctx context.Context, documentID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (s *ImageStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
