package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picstash/internal/domain"
	"picstash/internal/repository"
	"picstash/internal/storage"
)

type fakeImageRepo struct {
	images     map[int64]*domain.Image
	nextID     int64
	failCreate bool
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{images: make(map[int64]*domain.Image)}
}

func (r *fakeImageRepo) Init(ctx context.Context) error { return nil }

func (r *fakeImageRepo) Create(ctx context.Context, image *domain.Image) (int64, error) {
	if r.failCreate {
		return 0, errors.New("insert image: disk full")
	}
	r.nextID++
	image.ID = r.nextID
	image.CreatedAt = time.Now().UTC()
	clone := *image
	r.images[image.ID] = &clone
	return image.ID, nil
}

func (r *fakeImageRepo) Get(ctx context.Context, id int64) (*domain.Image, error) {
	img, ok := r.images[id]
	if !ok {
		return nil, fmt.Errorf("image: %w", repository.ErrNotFound)
	}
	clone := *img
	return &clone, nil
}

func (r *fakeImageRepo) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Image, error) {
	var out []domain.Image
	for i := int64(1); i <= r.nextID; i++ {
		if img, ok := r.images[i]; ok && img.AuthorID == authorID {
			out = append(out, *img)
		}
	}
	return out, nil
}

func (r *fakeImageRepo) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	for _, img := range r.images {
		keys = append(keys, img.ObjectKey)
	}
	return keys, nil
}

func (r *fakeImageRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.images[id]; !ok {
		return fmt.Errorf("image: %w", repository.ErrNotFound)
	}
	delete(r.images, id)
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	puts    int
	deletes int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.puts++
	return nil
}

func (s *fakeStorage) PresignGetURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("no such object %s", key)
	}
	return "https://example.test/" + key + "?signed", nil
}

func (s *fakeStorage) DeleteObject(ctx context.Context, bucket, key string) error {
	delete(s.objects, key)
	s.deletes++
	return nil
}

func (s *fakeStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, data := range s.objects {
		out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
	}
	return out, nil
}

func newTestMediaService() (MediaService, *fakeImageRepo, *fakeStorage) {
	repo := newFakeImageRepo()
	store := newFakeStorage()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewMediaService(repo, store, MediaConfig{Bucket: "test-bucket", KeyPrefix: "images"}, logger)
	return svc, repo, store
}

var objectKeyPattern = regexp.MustCompile(`^images/[0-9a-f]{64}$`)

func TestUploadPersistsRecordWithRandomKey(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestMediaService()

	body := bytes.NewReader([]byte("png-bytes"))
	image, err := svc.Upload(ctx, 3, body, 9, "image/png", "my cat")
	require.NoError(t, err)

	assert.Equal(t, int64(3), image.AuthorID)
	assert.Equal(t, "my cat", image.Description)
	assert.Regexp(t, objectKeyPattern, image.ObjectKey)
	assert.NotContains(t, image.ObjectKey, "cat.png")

	require.Len(t, repo.images, 1)
	assert.Equal(t, []byte("png-bytes"), store.objects[image.ObjectKey])
}

func TestUploadKeysAreUnique(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestMediaService()

	first, err := svc.Upload(ctx, 1, bytes.NewReader([]byte("a")), 1, "image/png", "")
	require.NoError(t, err)
	second, err := svc.Upload(ctx, 1, bytes.NewReader([]byte("b")), 1, "image/png", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ObjectKey, second.ObjectKey)
}

func TestUploadCompensatesFailedMetadataWrite(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestMediaService()
	repo.failCreate = true

	_, err := svc.Upload(ctx, 1, bytes.NewReader([]byte("a")), 1, "image/png", "")
	require.Error(t, err)

	// The just-written object was removed again.
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, 1, store.deletes)
	assert.Empty(t, store.objects)
}

func TestGalleryEmptyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestMediaService()

	entries, err := svc.Gallery(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGalleryAttachesSignedURLs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestMediaService()

	image, err := svc.Upload(ctx, 5, bytes.NewReader([]byte("a")), 1, "image/jpeg", "pic")
	require.NoError(t, err)
	_, err = svc.Upload(ctx, 6, bytes.NewReader([]byte("b")), 1, "image/jpeg", "other user")
	require.NoError(t, err)

	entries, err := svc.Gallery(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, image.ObjectKey, entries[0].Image.ObjectKey)
	assert.Contains(t, entries[0].ImageURL, image.ObjectKey)
}

func TestDeleteUnknownImage(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestMediaService()

	err := svc.Delete(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Zero(t, store.deletes)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestMediaService()

	image, err := svc.Upload(ctx, 1, bytes.NewReader([]byte("a")), 1, "image/png", "")
	require.NoError(t, err)

	err = svc.Delete(ctx, 2, image.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Len(t, repo.images, 1)
	assert.Contains(t, store.objects, image.ObjectKey)
}

func TestDeleteRemovesObjectAndRecord(t *testing.T) {
	ctx := context.Background()
	svc, repo, store := newTestMediaService()

	image, err := svc.Upload(ctx, 1, bytes.NewReader([]byte("a")), 1, "image/png", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, image.ID))
	assert.Empty(t, repo.images)
	assert.NotContains(t, store.objects, image.ObjectKey)
}
