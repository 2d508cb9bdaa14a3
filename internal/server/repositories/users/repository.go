// Package users declares the repository contract for principal storage.
package users

import (
	"context"

	"github.com/rmaia/authd/internal/server/models"
)

// Repository defines CRUD operations on user accounts. Usernames and email
// addresses are unique; lookups that miss return common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}
