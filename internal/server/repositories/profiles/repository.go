// Package profiles declares the repository contract for account profiles.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

type Repository interface {
	// Create inserts a profile. Duplicate email or phone yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, p *models.Profile) (*models.Profile, error)

	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByPhone(ctx context.Context, phone string) (*models.Profile, error)

	// UpsertByEmail creates the profile for an externally verified email or
	// refreshes its avatar. Role, status and name of an existing profile are
	// kept.
	UpsertByEmail(ctx context.Context, p *models.Profile) (*models.Profile, error)

	// UpdatePassword replaces the password hash of a profile.
	UpdatePassword(ctx context.Context, id, hash string) error

	// List returns every profile, oldest first, when s is an admin.
	// Non-admins get common.ErrorForbidden.
	List(ctx context.Context, s *auth.Session) ([]*models.Profile, error)

	// SetRoleStatus changes role and/or status of a profile when s is an
	// admin. Nil arguments leave the field unchanged.
	SetRoleStatus(ctx context.Context, s *auth.Session, id string, role, status *string) (*models.Profile, error)

	// IsAdmin reports whether id belongs to an active admin.
	IsAdmin(ctx context.Context, id string) (bool, error)

	// Promote makes id an active admin without an admin caller. It exists
	// for operator bootstrap tooling only.
	Promote(ctx context.Context, id string) error
}
