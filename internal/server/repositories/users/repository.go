// Package users declares and implements storage of user records, the user
// lookup collaborator of the auth service.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophbank/internal/server/models"
)

type Repository interface {
	// Create inserts user with the role named by user.RoleName. A taken
	// username or email yields common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns the user with its role name, or common.ErrorNotFound.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetUserByID returns the user with its role name, or common.ErrorNotFound.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
