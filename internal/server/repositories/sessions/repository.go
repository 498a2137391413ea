// Package sessions declares and implements storage of login sessions, one
// row per access/refresh token pair keyed by its JTI.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/server/models"
)

// Repository is the session store. It does not judge expiry; callers use
// models.Session.Status.
type Repository interface {
	// Create inserts session. A JTI already in use yields common.ErrorConflict.
	Create(ctx context.Context, session *models.Session) (*models.Session, error)

	// FindByJTI returns the session, revoked or not, or common.ErrorNotFound.
	FindByJTI(ctx context.Context, jti string) (*models.Session, error)

	// UpdateToken replaces the access-token hash and expiry of a non-revoked
	// session. The refresh-token columns are left untouched. A missing or
	// revoked session yields common.ErrorNotFound.
	UpdateToken(ctx context.Context, jti string, tokenHash string, expiresAt time.Time) (*models.Session, error)

	// Revoke marks the session revoked. Revoking an already revoked session
	// changes nothing and is not an error. Unknown JTIs yield common.ErrorNotFound.
	Revoke(ctx context.Context, jti string) (*models.Session, error)

	// RevokeAllForUser revokes every live session of userID and returns how
	// many were revoked.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}
