// Package activity declares the repository contract for the append-only
// activity log.
package activity

import (
	"context"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

type Repository interface {
	// Insert appends one entry. An empty UserID is stored as NULL.
	Insert(ctx context.Context, e *models.ActivityLogEntry) error

	// List returns the newest entries, optionally for one note, when s is
	// an admin. Non-admins get an empty list.
	List(ctx context.Context, s *auth.Session, noteID string, limit int) ([]*models.ActivityLogEntry, error)
}
