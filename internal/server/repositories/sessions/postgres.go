package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
)

const sessionColumns = `id, user_id, jti, token, refresh_token, token_expired, refresh_token_expired, revoked_at, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO user_sessions (user_id, jti, token, refresh_token, token_expired, refresh_token_expired)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	row := r.db.QueryRowContext(ctx, query,
		s.UserID, s.JTI, s.TokenHash, s.RefreshTokenHash, s.TokenExpired, s.RefreshTokenExpired)

	created, err := scanSession(row)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) FindByJTI(ctx context.Context, jti string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE jti = $1`

	return r.one(ctx, query, jti)
}

func (r *PostgresRepository) UpdateToken(ctx context.Context, jti string, tokenHash string, expiresAt time.Time) (*models.Session, error) {
	query := `
		UPDATE user_sessions
		SET token = $2, token_expired = $3, updated_at = now()
		WHERE jti = $1 AND revoked_at IS NULL
		RETURNING ` + sessionColumns

	return r.one(ctx, query, jti, tokenHash, expiresAt)
}

func (r *PostgresRepository) Revoke(ctx context.Context, jti string) (*models.Session, error) {
	query := `
		UPDATE user_sessions
		SET revoked_at = COALESCE(revoked_at, now()),
		    updated_at = CASE WHEN revoked_at IS NULL THEN now() ELSE updated_at END
		WHERE jti = $1
		RETURNING ` + sessionColumns

	return r.one(ctx, query, jti)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE user_sessions
		SET revoked_at = now(), updated_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// one runs a single-row statement keyed by jti. A jti that is not a valid
// uuid cannot match any row, so it is reported as not found too.
func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	var revokedAt sql.NullTime

	err := row.Scan(&s.ID, &s.UserID, &s.JTI, &s.TokenHash, &s.RefreshTokenHash,
		&s.TokenExpired, &s.RefreshTokenExpired, &revokedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return s, nil
}
