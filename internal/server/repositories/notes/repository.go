// Package notes declares the repository contract for note rows.
package notes

import (
	"context"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// Repository reads and writes notes on behalf of a caller. Reads return
// common.ErrorNotFound both for missing notes and for callers who may not
// read them.
type Repository interface {
	// Get returns the note visible to s with the given id.
	Get(ctx context.Context, s *auth.Session, id string) (*models.Note, error)

	// List returns notes visible to s, most recently updated first.
	List(ctx context.Context, s *auth.Session, filter models.NoteFilter, limit, offset int) ([]*models.Note, error)

	// Create inserts a note authored by the admin s. Non-admins get
	// common.ErrorForbidden.
	Create(ctx context.Context, s *auth.Session, n *models.Note) (*models.Note, error)

	// Update applies patch to the note when s is an admin.
	Update(ctx context.Context, s *auth.Session, id string, patch models.NotePatch) (*models.Note, error)

	// Delete removes the note when s is an admin. Attachment rows cascade.
	Delete(ctx context.Context, s *auth.Session, id string) error
}
