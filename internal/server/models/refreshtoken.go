package models

import "time"

// RefreshToken is an opaque, single-use token bound to one profile.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is no longer valid at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}
