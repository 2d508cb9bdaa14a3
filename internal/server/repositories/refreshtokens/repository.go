// Package refreshtokens declares the repository contract for the per-user
// session records backing refresh tokens.
package refreshtokens

import (
	"context"

	"github.com/rmaia/authd/internal/server/models"
)

// Repository defines operations for storing, retrieving, and revoking
// refresh-token records. There is no update operation: rotation is always
// delete-then-create. Lookups that miss return common.ErrorNotFound.
type Repository interface {
	// Create persists a new record and returns it with the store-assigned id.
	Create(ctx context.Context, rt *models.RefreshToken) (*models.RefreshToken, error)

	// FindByID looks up a record by its id.
	FindByID(ctx context.Context, id string) (*models.RefreshToken, error)

	// FindByUserID returns the user's current session record, if any.
	FindByUserID(ctx context.Context, userID string) (*models.RefreshToken, error)

	// FindByToken looks up a record by the signed token string.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a record by id.
	Delete(ctx context.Context, id string) error
}
