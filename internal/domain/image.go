package domain

import "time"

// Image is the metadata record for one stored object. ObjectKey is the
// system-generated storage key; it never derives from the uploaded filename.
type Image struct {
	ID          int64
	ObjectKey   string
	Description string
	ContentType string
	Size        int64
	AuthorID    int64
	CreatedAt   time.Time
}
