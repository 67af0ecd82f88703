package domain

import "time"

// User represents a registered account. Token holds the most recently issued
// login credential; it is overwritten on every login and never read back
// during request validation.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Token        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
