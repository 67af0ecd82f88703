package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"picstash/internal/domain"
	"picstash/internal/repository"
)

const createImagesTable = `
CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	object_key TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	author_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL
);
`

const createImagesAuthorIndex = `
CREATE INDEX IF NOT EXISTS idx_images_author ON images(author_id);
`

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) repository.ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createImagesTable); err != nil {
		return fmt.Errorf("create images table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createImagesAuthorIndex); err != nil {
		return fmt.Errorf("create images index: %w", err)
	}
	return nil
}

func (r *ImageRepository) Create(ctx context.Context, image *domain.Image) (int64, error) {
	image.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO images (object_key, description, content_type, size, author_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		image.ObjectKey,
		image.Description,
		image.ContentType,
		image.Size,
		image.AuthorID,
		image.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("image last insert id: %w", err)
	}
	image.ID = id
	return id, nil
}

func (r *ImageRepository) Get(ctx context.Context, id int64) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, object_key, description, content_type, size, author_id, created_at
FROM images
WHERE id = ?`,
		id,
	)
	return scanImage(row)
}

func (r *ImageRepository) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, object_key, description, content_type, size, author_id, created_at
FROM images
WHERE author_id = ?
ORDER BY id`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func (r *ImageRepository) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT object_key FROM images`)
	if err != nil {
		return nil, fmt.Errorf("list image keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan image key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image keys: %w", err)
	}
	return keys, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete image rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("image: %w", repository.ErrNotFound)
	}
	return nil
}

func scanImage(row interface {
	Scan(dest ...any) error
}) (*domain.Image, error) {
	var img domain.Image
	if err := row.Scan(
		&img.ID,
		&img.ObjectKey,
		&img.Description,
		&img.ContentType,
		&img.Size,
		&img.AuthorID,
		&img.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan image: %w", err)
	}
	return &img, nil
}
