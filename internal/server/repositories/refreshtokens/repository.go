// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Consume deletes a refresh token and returns the row it held, so a
	// token can be exchanged at most once. Absent tokens yield
	// common.ErrorNotFound.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string. Deleting a non-existent
	// token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByUser revokes every refresh token of a user.
	DeleteByUser(ctx context.Context, userID string) error
}
