package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"picstash/internal/domain"
	"picstash/internal/repository"
	"picstash/internal/storage"
)

var (
	// ErrImageNotFound is returned when no image matches the requested id.
	ErrImageNotFound = errors.New("image not found")
	// ErrNotOwner is returned when a caller operates on another user's image.
	ErrNotOwner = errors.New("not the image owner")
)

const objectKeyBytes = 32

// GalleryEntry pairs an image record with a freshly presigned retrieval URL.
// The URL is generated per listing and never persisted.
type GalleryEntry struct {
	Image    domain.Image
	ImageURL string
}

// MediaService coordinates image uploads, gallery listings, and deletions.
type MediaService interface {
	Upload(ctx context.Context, authorID int64, body io.Reader, size int64, contentType, description string) (*domain.Image, error)
	Gallery(ctx context.Context, authorID int64) ([]GalleryEntry, error)
	Delete(ctx context.Context, callerID, imageID int64) error
}

type mediaService struct {
	images repository.ImageRepository
	store  storage.Service
	bucket string
	prefix string
	urlTTL time.Duration
	logger *logrus.Logger
}

// MediaConfig carries the storage destination for uploaded objects.
type MediaConfig struct {
	Bucket    string
	KeyPrefix string
	URLTTL    time.Duration
}

func NewMediaService(images repository.ImageRepository, store storage.Service, cfg MediaConfig, logger *logrus.Logger) MediaService {
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &mediaService{
		images: images,
		store:  store,
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
		urlTTL: ttl,
		logger: logger,
	}
}

func (s *mediaService) Upload(ctx context.Context, authorID int64, body io.Reader, size int64, contentType, description string) (*domain.Image, error) {
	key, err := newObjectKey(s.prefix)
	if err != nil {
		return nil, err
	}

	if err := s.store.PutObject(ctx, s.bucket, key, contentType, body); err != nil {
		return nil, err
	}

	image := &domain.Image{
		ObjectKey:   key,
		Description: description,
		ContentType: contentType,
		Size:        size,
		AuthorID:    authorID,
	}

	if _, err := s.images.Create(ctx, image); err != nil {
		// The object write already happened; try not to leave it orphaned.
		// The sweeper picks up anything this misses.
		if delErr := s.store.DeleteObject(ctx, s.bucket, key); delErr != nil {
			s.logger.WithError(delErr).WithField("key", key).Warn("orphaned object left after failed metadata insert")
		}
		return nil, err
	}

	return image, nil
}

func (s *mediaService) Gallery(ctx context.Context, authorID int64) ([]GalleryEntry, error) {
	images, err := s.images.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	entries := make([]GalleryEntry, 0, len(images))
	for _, img := range images {
		url, err := s.store.PresignGetURL(ctx, s.bucket, img.ObjectKey, s.urlTTL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, GalleryEntry{Image: img, ImageURL: url})
	}
	return entries, nil
}

func (s *mediaService) Delete(ctx context.Context, callerID, imageID int64) error {
	image, err := s.images.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	if image.AuthorID != callerID {
		return ErrNotOwner
	}

	// Object first: a failure here leaves both halves intact, a crash after
	// it leaves a dangling metadata row rather than an unreachable object.
	if err := s.store.DeleteObject(ctx, s.bucket, image.ObjectKey); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, imageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

// newObjectKey returns a storage key built from 32 bytes of cryptographic
// randomness, hex-encoded. User input never contributes to the key.
func newObjectKey(prefix string) (string, error) {
	buf := make([]byte, objectKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate object key: %w", err)
	}
	key := hex.EncodeToString(buf)
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key, nil
}
