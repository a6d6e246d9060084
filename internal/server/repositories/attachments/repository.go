// Package attachments declares the repository contract for attachment rows.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// Repository reads and writes attachment rows on behalf of a caller.
type Repository interface {
	// ListByNote returns the attachments of a note visible to s, ordered
	// by created_at then id, oldest first.
	ListByNote(ctx context.Context, s *auth.Session, noteID string) ([]*models.Attachment, error)

	// Get returns one attachment of a note visible to s.
	Get(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error)

	// Create inserts an attachment row for an existing note when s is an
	// admin. Unknown notes yield common.ErrorNotFound, non-admins
	// common.ErrorForbidden.
	Create(ctx context.Context, s *auth.Session, a *models.Attachment) (*models.Attachment, error)

	// Delete removes an attachment row when s is an admin and returns it.
	Delete(ctx context.Context, s *auth.Session, noteID, id string) (*models.Attachment, error)

	// PathsByNote returns the storage paths of every attachment of a note
	// when s is an admin.
	PathsByNote(ctx context.Context, s *auth.Session, noteID string) ([]string, error)
}
