package repository

import (
	"context"

	"picstash/internal/domain"
)

// ImageRepository defines persistence operations for Image metadata records.
type ImageRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, image *domain.Image) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Image, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Image, error)
	ListKeys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id int64) error
}
